package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	t.Run("AcquireUpToCapacity", func(t *testing.T) {
		g := NewGate(2)
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx))
		require.NoError(t, g.Acquire(ctx))
		assert.Equal(t, 2, g.Outstanding())

		g.Release()
		g.Release()
		assert.Equal(t, 0, g.Outstanding())
	})

	t.Run("WaiterBlocksUntilRelease", func(t *testing.T) {
		g := NewGate(1)
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx))

		acquired := make(chan struct{})
		go func() {
			if err := g.Acquire(ctx); err == nil {
				close(acquired)
			}
		}()

		select {
		case <-acquired:
			t.Fatal("acquire should block at capacity")
		case <-time.After(50 * time.Millisecond):
		}

		g.Release()

		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("waiter not woken on release")
		}
		g.Release()
	})

	t.Run("AcquireHonorsCancellation", func(t *testing.T) {
		g := NewGate(1)
		require.NoError(t, g.Acquire(context.Background()))
		defer g.Release()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- g.Acquire(ctx) }()

		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("cancelled acquire did not return")
		}
		assert.Equal(t, 1, g.Outstanding(), "cancelled waiter must not hold a permit")
	})

	t.Run("CancelledContextWinsOverFreePermit", func(t *testing.T) {
		g := NewGate(1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, g.Acquire(ctx), context.Canceled)
		assert.Equal(t, 0, g.Outstanding())
	})

	t.Run("ReleaseWithoutAcquirePanics", func(t *testing.T) {
		g := NewGate(1)
		assert.Panics(t, func() { g.Release() })
	})

	t.Run("ZeroCapacityUsesDefault", func(t *testing.T) {
		g := NewGate(0)
		assert.Equal(t, DefaultMaxConcurrent, g.Capacity())
	})

	t.Run("ManyWaitersAllEventuallyAdmitted", func(t *testing.T) {
		const waiters = 20
		g := NewGate(2)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < waiters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(t, g.Acquire(ctx))
				time.Sleep(time.Millisecond)
				g.Release()
			}()
		}
		wg.Wait()
		assert.Equal(t, 0, g.Outstanding())
	})
}
