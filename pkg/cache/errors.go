package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode classifies resolution failures.
type ErrorCode int

const (
	// CodeNetwork indicates the transfer failed (timeout, connection lost,
	// non-success status).
	CodeNetwork ErrorCode = iota + 1

	// CodeIO indicates a disk write or commit failure.
	CodeIO

	// CodePreparation indicates the downloaded media failed validation.
	CodePreparation

	// CodeCancelled indicates cooperative cancellation; not a true failure.
	CodeCancelled
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNetwork:
		return "network"
	case CodeIO:
		return "io"
	case CodePreparation:
		return "preparation"
	case CodeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the failure type surfaced by Resolve. Coalesced waiters all
// receive the same *Error value.
type Error struct {
	Code   ErrorCode
	Remote string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.Remote, e.Code, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.Remote, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err with a code, preserving cancellation: a wrapped
// context error is always classified as CodeCancelled regardless of the
// code the caller suggests.
func newError(code ErrorCode, remote string, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = CodeCancelled
	}
	return &Error{Code: code, Remote: remote, Err: err}
}

// codeOf extracts the ErrorCode from err, or 0 if err is not an *Error.
func codeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsNetwork reports whether err is a transfer failure.
func IsNetwork(err error) bool { return codeOf(err) == CodeNetwork }

// IsIO reports whether err is a disk failure.
func IsIO(err error) bool { return codeOf(err) == CodeIO }

// IsPreparation reports whether err is a media validation failure.
func IsPreparation(err error) bool { return codeOf(err) == CodePreparation }

// IsCancelled reports whether err is a cooperative cancellation.
func IsCancelled(err error) bool {
	return codeOf(err) == CodeCancelled ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
