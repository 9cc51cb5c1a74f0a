// Package cache implements the video resource cache: resolving a remote
// video reference to a locally cached file with bounded transfer
// concurrency and single-flight deduplication.
//
// Resolution walks three tiers: a memory-resident fast-path index, a disk
// existence check at the deterministic content address, and finally a
// physical transfer. Concurrent callers for the same remote coalesce onto
// one shared transfer; distinct remotes are admitted through a capacity
// gate so a fast scroll triggering dozens of visibility events never opens
// more than a handful of connections. Waiting requests are delayed, never
// rejected.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
	"github.com/joshuaramkissoon/clipcache/pkg/cache/addr"
	"github.com/joshuaramkissoon/clipcache/pkg/cache/disk"
)

// Fetcher is the network transfer provider. The cache treats it as opaque:
// retry, backoff and connectivity waits are its business, and the cache
// never retries on top of it.
type Fetcher interface {
	// Fetch downloads remote into dst. dst is an open temp file positioned
	// at the start.
	Fetch(ctx context.Context, remote string, dst io.ReadWriteSeeker) error
}

// Config holds configuration for the video cache.
type Config struct {
	// MaxConcurrent caps simultaneous physical transfers.
	// Default: 2
	MaxConcurrent int

	// IndexSize bounds the memory fast-path index.
	// Default: 256
	IndexSize int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: DefaultMaxConcurrent,
		IndexSize:     DefaultIndexSize,
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	MemoryHits  uint64 `json:"memory_hits"`
	DiskHits    uint64 `json:"disk_hits"`
	Coalesced   uint64 `json:"coalesced"`
	Transfers   uint64 `json:"transfers"`
	Failures    uint64 `json:"failures"`
	InFlight    int    `json:"in_flight"`
	IndexLen    int    `json:"index_len"`
	PermitsUsed int    `json:"permits_used"`
}

// VideoCache resolves remote video references to local file paths.
//
// One mutex serializes the in-flight registry and waiter counters; the
// index and gate carry their own synchronization but are only touched
// through the coordinator. Safe for concurrent use by many sessions.
type VideoCache struct {
	store   *disk.Store
	fetcher Fetcher
	gate    *Gate
	metrics CacheMetrics

	mu      sync.Mutex
	flights *inflight
	index   *pathIndex

	memHits   atomic.Uint64
	diskHits  atomic.Uint64
	coalesced atomic.Uint64
	transfers atomic.Uint64
	failures  atomic.Uint64
}

// New creates a video cache over the given disk store and transfer
// provider. metrics may be nil.
func New(store *disk.Store, fetcher Fetcher, cfg Config, metrics CacheMetrics) (*VideoCache, error) {
	if store == nil {
		return nil, errors.New("disk store is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	index, err := newPathIndex(cfg.IndexSize)
	if err != nil {
		return nil, err
	}

	return &VideoCache{
		store:   store,
		fetcher: fetcher,
		gate:    NewGate(cfg.MaxConcurrent),
		metrics: metrics,
		flights: newInflight(),
		index:   index,
	}, nil
}

// LocalPath returns the deterministic final path for a remote reference
// without resolving it.
func (c *VideoCache) LocalPath(remote string) string {
	return addr.LocalPathFor(c.store.Root(), remote)
}

// Resolve turns a remote video reference into a usable local file path,
// downloading if necessary. All concurrent callers for the same remote
// receive the identical path or the identical error. May block while
// waiting for a gate permit or a shared transfer; honors ctx cancellation
// without disturbing other waiters unless this caller is the last one.
func (c *VideoCache) Resolve(ctx context.Context, remote string) (string, error) {
	if remote == "" {
		return "", fmt.Errorf("remote reference is empty")
	}
	start := time.Now()

	// Tier 1: memory fast path. No suspension.
	if path, ok := c.index.get(remote); ok {
		c.memHits.Add(1)
		observeResolve(c.metrics, TierMemory, start)
		return path, nil
	}

	// Tier 2: disk fast path. The address is deterministic, so existence
	// is the whole check; only complete files are ever visible there.
	final := c.LocalPath(remote)
	if c.store.Exists(final) {
		c.index.put(remote, final)
		c.diskHits.Add(1)
		observeResolve(c.metrics, TierDisk, start)
		return final, nil
	}

	// Tier 3: coalesce onto an existing transfer, or start one.
	c.mu.Lock()
	if t, ok := c.flights.lookup(remote); ok {
		c.mu.Unlock()
		c.coalesced.Add(1)
		return c.await(ctx, t, start, TierCoalesced)
	}

	// The transfer runs on a context detached from this caller: any one
	// waiter leaving must not abort the download for the others. It is
	// cancelled only when the waiter count drops to zero.
	tctx, cancel := context.WithCancel(context.Background())
	t := c.flights.register(remote, cancel)
	if c.metrics != nil {
		c.metrics.ObserveInFlight(c.flights.count())
	}
	c.mu.Unlock()

	go c.transfer(tctx, t, final)

	return c.await(ctx, t, start, TierTransfer)
}

// await blocks on a shared task until it completes or ctx is cancelled.
func (c *VideoCache) await(ctx context.Context, t *task, start time.Time, tier string) (string, error) {
	select {
	case <-t.done:
		if t.err != nil {
			observeResolveError(c.metrics, t.err)
			return "", t.err
		}
		observeResolve(c.metrics, tier, start)
		return t.path, nil

	case <-ctx.Done():
		c.mu.Lock()
		c.flights.detach(t)
		c.mu.Unlock()

		err := newError(CodeCancelled, t.remote, ctx.Err())
		observeResolveError(c.metrics, err)
		return "", err
	}
}

// transfer performs the single physical download for a task: gate permit,
// fetch to temp, atomic commit, index populate. The permit is released and
// the registry entry removed on every exit path.
func (c *VideoCache) transfer(ctx context.Context, t *task, final string) {
	var (
		path string
		err  error
	)
	defer func() {
		if err != nil {
			c.failures.Add(1)
		}
		c.mu.Lock()
		c.flights.complete(t, path, err)
		if c.metrics != nil {
			c.metrics.ObserveInFlight(c.flights.count())
		}
		c.mu.Unlock()
	}()

	if acquireErr := c.gate.Acquire(ctx); acquireErr != nil {
		err = newError(CodeCancelled, t.remote, acquireErr)
		return
	}
	defer c.gate.Release()

	c.transfers.Add(1)
	start := time.Now()
	if c.metrics != nil {
		c.metrics.TransferStarted()
		defer func() {
			c.metrics.TransferFinished(time.Since(start), err == nil)
		}()
	}

	tmp, tmpErr := c.store.TempFile()
	if tmpErr != nil {
		err = newError(CodeIO, t.remote, tmpErr)
		return
	}

	fetchErr := c.fetcher.Fetch(ctx, t.remote, tmp)
	closeErr := tmp.Close()

	if fetchErr != nil {
		_ = c.store.Discard(tmp.Name())
		err = newError(CodeNetwork, t.remote, fetchErr)
		logger.Debug("transfer failed",
			logger.KeyRemote, t.remote,
			logger.KeyError, err.Error(),
		)
		return
	}
	if closeErr != nil {
		_ = c.store.Discard(tmp.Name())
		err = newError(CodeIO, t.remote, closeErr)
		return
	}

	if commitErr := c.store.Commit(tmp.Name(), final); commitErr != nil {
		err = newError(CodeIO, t.remote, commitErr)
		return
	}

	c.index.put(t.remote, final)
	path = final

	logger.Debug("transfer complete",
		logger.KeyRemote, t.remote,
		logger.KeyPath, final,
		logger.KeyDurationMs, logger.Duration(start),
	)
}

// Invalidate drops the fast-path index entries pointing at path. Called
// when an entry disappears from disk behind the cache's back, so the next
// Resolve falls through to the disk check instead of returning a dead path.
func (c *VideoCache) Invalidate(path string) {
	if n := c.index.dropPath(path); n > 0 {
		logger.Debug("index entries invalidated",
			logger.KeyPath, path,
			logger.KeyEvicted, n,
		)
	}
}

// Watch starts a disk watcher that feeds external removals into Invalidate.
// The caller owns the returned watcher and must Close it.
func (c *VideoCache) Watch() (*disk.Watcher, error) {
	return disk.Watch(c.store, c.Invalidate)
}

// Purge removes every committed entry from disk and clears the memory
// index. In-flight transfers are unaffected; they re-commit on completion.
func (c *VideoCache) Purge(ctx context.Context) (int, error) {
	paths, err := c.store.Entries()
	if err != nil {
		return 0, err
	}

	var removed int
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := c.store.Remove(p); err != nil {
			return removed, err
		}
		removed++
	}

	c.index.purge()

	logger.Info("cache purged", logger.KeyEvicted, removed)
	return removed, nil
}

// Stats returns a snapshot of cache counters.
func (c *VideoCache) Stats() Stats {
	c.mu.Lock()
	inFlight := c.flights.count()
	c.mu.Unlock()

	return Stats{
		MemoryHits:  c.memHits.Load(),
		DiskHits:    c.diskHits.Load(),
		Coalesced:   c.coalesced.Load(),
		Transfers:   c.transfers.Load(),
		Failures:    c.failures.Load(),
		InFlight:    inFlight,
		IndexLen:    c.index.len(),
		PermitsUsed: c.gate.Outstanding(),
	}
}

// Gate exposes the transfer gate for observability.
func (c *VideoCache) Gate() *Gate {
	return c.gate
}
