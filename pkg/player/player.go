// Package player implements the reusable playback-engine pool. A player
// is owned either by the pool's free list (idle, reset) or by exactly one
// session; never by both at once.
package player

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
	"github.com/joshuaramkissoon/clipcache/pkg/asset"
)

// DefaultMaxFree bounds the free list. Recycled players beyond the cap
// are closed and dropped.
const DefaultMaxFree = 6

// ErrPlayerClosed is returned when content is loaded into a closed
// player.
var ErrPlayerClosed = errors.New("player: closed")

// ============================================================================
// Player Interface
// ============================================================================

// Player is a stateful playback-engine instance. Implementations are not
// required to be safe for concurrent use; the owning session serializes
// access.
type Player interface {
	// Load binds a prepared asset. Replaces any previous content.
	Load(a *asset.PreparedAsset) error

	// Play starts or resumes playback.
	Play()

	// Pause halts playback, keeping loaded content.
	Pause()

	// Clear unloads all content and resets playback position.
	Clear()

	// SetMuted toggles audio output.
	SetMuted(muted bool)

	// SetLooping toggles automatic restart at end of media.
	SetLooping(looping bool)

	// Close releases engine resources. The player is unusable after.
	Close() error
}

// Factory constructs a fresh playback engine.
type Factory func() Player

// ============================================================================
// Pool
// ============================================================================

// Stats is a snapshot of pool counters.
type Stats struct {
	Created  uint64 `json:"created"`
	Reused   uint64 `json:"reused"`
	Dropped  uint64 `json:"dropped"`
	Free     int    `json:"free"`
	MaxFree  int    `json:"max_free"`
}

// Pool hands out playback engines and takes them back. Obtain prefers the
// free list and falls back to the factory; Recycle resets the instance
// before returning it to the free list. Safe for concurrent use.
type Pool struct {
	factory Factory
	maxFree int

	mu   sync.Mutex
	free []Player

	created atomic.Uint64
	reused  atomic.Uint64
	dropped atomic.Uint64
}

// NewPool creates a player pool. maxFree <= 0 selects DefaultMaxFree.
func NewPool(factory Factory, maxFree int) *Pool {
	if maxFree <= 0 {
		maxFree = DefaultMaxFree
	}
	return &Pool{
		factory: factory,
		maxFree: maxFree,
		free:    make([]Player, 0, maxFree),
	}
}

// Obtain returns an idle player from the free list if available, else a
// newly constructed one. The result is always clean, unloaded and paused.
func (p *Pool) Obtain() Player {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		pl := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		p.reused.Add(1)
		return pl
	}
	p.mu.Unlock()

	p.created.Add(1)
	logger.Debug("player constructed", logger.KeyFreeCount, p.FreeCount())
	return p.factory()
}

// Recycle takes back a player. The caller must have stopped active
// playback already; the pool pauses and clears regardless, so a dirty
// instance never reaches the free list. Players beyond maxFree are closed
// and dropped.
func (p *Pool) Recycle(pl Player) {
	if pl == nil {
		return
	}

	pl.Pause()
	pl.Clear()

	p.mu.Lock()
	if len(p.free) < p.maxFree {
		p.free = append(p.free, pl)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.dropped.Add(1)
	if err := pl.Close(); err != nil {
		logger.Warn("dropped player close failed", logger.KeyError, err.Error())
	}
}

// FreeCount reports the current free-list length.
func (p *Pool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Close drains the free list, closing every idle player.
func (p *Pool) Close() error {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()

	var firstErr error
	for _, pl := range free {
		if err := pl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Created: p.created.Load(),
		Reused:  p.reused.Load(),
		Dropped: p.dropped.Load(),
		Free:    p.FreeCount(),
		MaxFree: p.maxFree,
	}
}
