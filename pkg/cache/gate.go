package cache

import (
	"context"
)

// DefaultMaxConcurrent is the default transfer gate capacity.
const DefaultMaxConcurrent = 2

// Gate is a counting semaphore bounding concurrent outbound transfers.
//
// At most capacity permits are outstanding at once; further acquirers wait
// in FIFO-ish order on the channel until a permit is released or their
// context is cancelled. Requests are never rejected, only delayed.
type Gate struct {
	permits chan struct{}
}

// NewGate creates a gate with the given capacity.
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultMaxConcurrent
	}
	return &Gate{permits: make(chan struct{}, capacity)}
}

// Acquire blocks until a permit is available or ctx is cancelled.
// Every successful Acquire must be paired with exactly one Release.
func (g *Gate) Acquire(ctx context.Context) error {
	// Cancellation wins even when a permit is immediately available.
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case g.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit. Releasing more permits than were acquired is a
// programming error and panics.
func (g *Gate) Release() {
	select {
	case <-g.permits:
	default:
		panic("cache: gate release without acquire")
	}
}

// Capacity returns the maximum number of outstanding permits.
func (g *Gate) Capacity() int {
	return cap(g.permits)
}

// Outstanding returns the number of permits currently held.
func (g *Gate) Outstanding() int {
	return len(g.permits)
}
