// Package asset prepares local video files for playback and caches the
// prepared handles. Preparation probes the file: it must exist, be
// non-empty and carry a recognizable container signature. Successes are
// cached by path in a bounded LRU; failures are never cached, so a later
// call retries preparation.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
)

// ============================================================================
// Constants and Errors
// ============================================================================

// DefaultCapacity bounds the number of prepared assets kept alive.
const DefaultCapacity = 50

var (
	// ErrEmptyFile is returned when the probed file has zero length.
	ErrEmptyFile = errors.New("asset: file is empty")

	// ErrUnrecognizedContainer is returned when the file header matches no
	// supported media container.
	ErrUnrecognizedContainer = errors.New("asset: unrecognized container signature")

	// ErrClosed is returned when the prepared asset has been released.
	ErrClosed = errors.New("asset: closed")
)

// ============================================================================
// PreparedAsset
// ============================================================================

// PreparedAsset is a validated media handle. It pins the underlying file
// open for its lifetime; Close releases it. Owned by the pool until
// evicted.
type PreparedAsset struct {
	// Path is the local file the asset was prepared from.
	Path string

	// Size is the file length in bytes at preparation time.
	Size int64

	// Container names the detected media container ("mp4", "webm").
	Container string

	f         *os.File
	closeOnce sync.Once
	closed    atomic.Bool
}

// Reader returns a reader positioned at the start of the media data.
func (a *PreparedAsset) Reader() (io.ReadSeeker, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if _, err := a.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return a.f, nil
}

// Close releases the pinned file handle. Idempotent.
func (a *PreparedAsset) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		err = a.f.Close()
	})
	return err
}

// ============================================================================
// Probing
// ============================================================================

// prepare opens and validates path, returning an asset that keeps the
// file open. The caller owns the asset on success.
func prepare(path string) (*PreparedAsset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat asset: %w", err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	container, err := sniffContainer(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return &PreparedAsset{
		Path:      path,
		Size:      info.Size(),
		Container: container,
		f:         f,
	}, nil
}

// sniffContainer reads the file header and identifies the media
// container. ISO-BMFF files (mp4, mov) carry "ftyp" at byte 4; Matroska
// and WebM open with the EBML magic.
func sniffContainer(r io.ReaderAt) (string, error) {
	var head [12]byte
	if _, err := r.ReadAt(head[:], 0); err != nil {
		return "", fmt.Errorf("%w: short header", ErrUnrecognizedContainer)
	}

	if string(head[4:8]) == "ftyp" {
		return "mp4", nil
	}
	if head[0] == 0x1A && head[1] == 0x45 && head[2] == 0xDF && head[3] == 0xA3 {
		return "webm", nil
	}
	return "", fmt.Errorf("%w: %x", ErrUnrecognizedContainer, head[:8])
}

// ============================================================================
// Pool
// ============================================================================

// Stats is a snapshot of pool counters.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Prepared uint64 `json:"prepared"`
	Failures uint64 `json:"failures"`
	Len      int    `json:"len"`
}

// Pool caches prepared assets by local path. Capacity-bounded with LRU
// eviction; the evicted asset is closed. Safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	assets *lru.Cache[string, *PreparedAsset]

	hits     atomic.Uint64
	prepared atomic.Uint64
	failures atomic.Uint64
}

// NewPool creates an asset pool holding at most capacity prepared assets.
// capacity <= 0 selects DefaultCapacity.
func NewPool(capacity int) (*Pool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	assets, err := lru.NewWithEvict(capacity, func(path string, a *PreparedAsset) {
		_ = a.Close()
		logger.Debug("prepared asset evicted", logger.KeyPath, path)
	})
	if err != nil {
		return nil, err
	}

	return &Pool{assets: assets}, nil
}

// Get returns the prepared asset for path, preparing it on first use.
// A cached asset whose backing file has since been released is dropped
// and re-prepared. Preparation failures are not cached.
func (p *Pool) Get(ctx context.Context, path string) (*PreparedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New("asset path is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if a, ok := p.assets.Get(path); ok {
		if !a.closed.Load() {
			p.hits.Add(1)
			return a, nil
		}
		p.assets.Remove(path)
	}

	a, err := prepare(path)
	if err != nil {
		p.failures.Add(1)
		logger.Debug("asset preparation failed",
			logger.KeyPath, path,
			logger.KeyError, err.Error(),
		)
		return nil, err
	}

	p.assets.Add(path, a)
	p.prepared.Add(1)
	logger.Debug("asset prepared",
		logger.KeyPath, path,
		logger.KeySize, a.Size,
	)
	return a, nil
}

// Drop evicts and closes the asset for path, if cached.
func (p *Pool) Drop(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assets.Remove(path)
}

// Purge evicts and closes every cached asset.
func (p *Pool) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assets.Purge()
}

// Len reports the number of cached assets.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assets.Len()
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Hits:     p.hits.Load(),
		Prepared: p.prepared.Load(),
		Failures: p.failures.Load(),
		Len:      p.Len(),
	}
}
