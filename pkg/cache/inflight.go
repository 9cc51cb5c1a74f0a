package cache

import (
	"context"
)

// task is a shared, awaitable handle for one in-progress download.
//
// At most one task exists per remote reference at any instant. All callers
// interested in the same remote attach to the same task and receive the
// identical outcome. The underlying transfer is only cancelled when the
// last interested waiter detaches.
type task struct {
	remote string

	// done is closed exactly once when the transfer terminates.
	done chan struct{}

	// path and err are the shared outcome; valid only after done is closed.
	path string
	err  error

	// waiters counts attached callers. Guarded by the owning registry's
	// mutex. When it drops to zero before completion the transfer is
	// cancelled via cancel.
	waiters  int
	finished bool
	cancel   context.CancelFunc
}

// newTask creates a task with one initial waiter (the registering caller).
func newTask(remote string, cancel context.CancelFunc) *task {
	return &task{
		remote:  remote,
		done:    make(chan struct{}),
		waiters: 1,
		cancel:  cancel,
	}
}

// inflight is the registry deduplicating concurrent downloads.
//
// All mutations happen under the coordinator's single mutex (VideoCache.mu);
// the registry itself carries no locking. This keeps one serialization
// point for the memory index, the registry and the waiter counters, as
// concurrent Resolve calls from many visible feed items hit all three.
type inflight struct {
	tasks map[string]*task
}

func newInflight() *inflight {
	return &inflight{tasks: make(map[string]*task)}
}

// lookup returns the existing task for remote and attaches the caller as a
// waiter. Caller must hold the coordinator mutex.
func (r *inflight) lookup(remote string) (*task, bool) {
	t, ok := r.tasks[remote]
	if ok {
		t.waiters++
	}
	return t, ok
}

// register creates and stores a new task for remote. Caller must hold the
// coordinator mutex and must have checked that no task exists.
func (r *inflight) register(remote string, cancel context.CancelFunc) *task {
	t := newTask(remote, cancel)
	r.tasks[remote] = t
	return t
}

// detach removes one waiter from t. If that was the last interested party
// and the transfer has not finished, the underlying transfer is cancelled.
// Caller must hold the coordinator mutex.
func (r *inflight) detach(t *task) {
	t.waiters--
	if t.waiters <= 0 && !t.finished {
		t.cancel()
	}
}

// complete records the outcome, removes the task from the registry and
// wakes every waiter. Caller must hold the coordinator mutex. Idempotent
// completion is a bug; each task completes exactly once.
func (r *inflight) complete(t *task, path string, err error) {
	t.path = path
	t.err = err
	t.finished = true
	t.cancel()
	delete(r.tasks, t.remote)
	close(t.done)
}

// count returns the number of registered tasks. Caller must hold the
// coordinator mutex.
func (r *inflight) count() int {
	return len(r.tasks)
}
