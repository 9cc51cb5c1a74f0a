package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that cache,
// pool, and session events can be correlated in log aggregation.
const (
	// Request correlation
	KeyRequestID = "request_id" // API request ID
	KeySessionID = "session_id" // Looping session identifier

	// Cache layer
	KeyRemote    = "remote"     // Remote video reference (URL)
	KeyDigest    = "digest"     // Content digest (cache key)
	KeyPath      = "path"       // Local file path
	KeyTier      = "tier"       // Resolution tier: memory, disk, coalesced, transfer
	KeySize      = "size"       // File size in bytes
	KeyWaiters   = "waiters"    // Waiters attached to an in-flight transfer
	KeyEvicted   = "evicted"    // Number of entries evicted
	KeyCacheHit  = "cache_hit"  // Cache hit indicator
	KeyCacheSize = "cache_size" // Current entry count

	// Transfer
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyStatus     = "status"      // HTTP status code

	// Pools
	KeyFreeCount = "free_count" // Idle players in the free list
	KeyAssets    = "assets"     // Prepared assets resident in the pool

	// Session state machine
	KeyState   = "state"   // Session state: idle, resolving, active
	KeyVisible = "visible" // Visibility event value

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// RequestID returns a slog.Attr for an API request ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// SessionID returns a slog.Attr for a session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Remote returns a slog.Attr for a remote video reference
func Remote(url string) slog.Attr {
	return slog.String(KeyRemote, url)
}

// Digest returns a slog.Attr for a content digest
func Digest(d string) slog.Attr {
	return slog.String(KeyDigest, d)
}

// Path returns a slog.Attr for a local file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Tier returns a slog.Attr for the resolution tier that served a request
func Tier(t string) slog.Attr {
	return slog.String(KeyTier, t)
}

// Size returns a slog.Attr for a file size
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Waiters returns a slog.Attr for the in-flight waiter count
func Waiters(n int) slog.Attr {
	return slog.Int(KeyWaiters, n)
}

// Evicted returns a slog.Attr for number of entries evicted
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// CacheHit returns a slog.Attr for a cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Status returns a slog.Attr for an HTTP status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// State returns a slog.Attr for a session state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Visible returns a slog.Attr for a visibility event value
func Visible(v bool) slog.Attr {
	return slog.Bool(KeyVisible, v)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
