// Package session implements the per-item playback controller. A
// LoopingSession binds one pooled player to one prepared asset and
// manages looped, muted playback driven by visibility events: the item
// becomes visible, the session resolves the remote reference, prepares
// the asset, obtains a player and starts looping; the item becomes
// invisible and the session tears everything down and recycles the
// player. Failures during resolution are non-fatal; scrolling the item
// back into view retries.
package session

import (
	"context"
	"sync"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
	"github.com/joshuaramkissoon/clipcache/pkg/asset"
	"github.com/joshuaramkissoon/clipcache/pkg/cache"
	"github.com/joshuaramkissoon/clipcache/pkg/player"
)

// ============================================================================
// Collaborator Interfaces
// ============================================================================

// Resolver turns a remote video reference into a local file path.
type Resolver interface {
	Resolve(ctx context.Context, remote string) (string, error)
}

// AssetProvider prepares local files for playback.
type AssetProvider interface {
	Get(ctx context.Context, path string) (*asset.PreparedAsset, error)
}

// PlayerSource hands out and takes back playback engines.
type PlayerSource interface {
	Obtain() player.Player
	Recycle(p player.Player)
}

// ============================================================================
// State Machine
// ============================================================================

// State is the session lifecycle state.
type State int32

const (
	// StateIdle means no playback and no in-flight work.
	StateIdle State = iota

	// StateResolving means the resolve/prepare/obtain chain is running.
	StateResolving

	// StateActive means a live player is looping the asset.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Callbacks are optional observer hooks. Both may be nil. They are
// invoked without the session lock held.
type Callbacks struct {
	// OnError receives non-fatal resolution failures. Cancellation is
	// never reported.
	OnError func(err error)

	// OnStateChange is invoked after every state transition.
	OnStateChange func(s State)
}

// LoopingSession pairs one pooled player with one prepared asset for the
// item's time on screen. Safe for concurrent use; visibility events,
// remote swaps and Close may arrive from different goroutines.
type LoopingSession struct {
	cache   Resolver
	assets  AssetProvider
	players PlayerSource
	cb      Callbacks

	mu      sync.Mutex
	state   State
	remote  string
	visible bool
	closed  bool

	// gen invalidates in-flight chains: every teardown or restart bumps
	// it, and a chain only commits its result if its gen is still
	// current.
	gen    uint64
	cancel context.CancelFunc
	player player.Player
}

// New creates an idle session for remote. Playback starts on the first
// SetVisible(true).
func New(cache Resolver, assets AssetProvider, players PlayerSource, remote string, cb Callbacks) *LoopingSession {
	return &LoopingSession{
		cache:   cache,
		assets:  assets,
		players: players,
		cb:      cb,
		remote:  remote,
		state:   StateIdle,
	}
}

// State reports the current lifecycle state.
func (s *LoopingSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetVisible feeds a visibility event. Becoming visible from Idle starts
// the resolution chain; becoming invisible tears down. Redundant events
// are no-ops.
func (s *LoopingSession) SetVisible(visible bool) {
	s.mu.Lock()
	if s.closed || s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	logger.Debug("visibility event",
		logger.KeyVisible, visible,
		logger.KeyState, s.state.String(),
		logger.KeyRemote, s.remote,
	)

	if !visible {
		s.teardownLocked()
		s.mu.Unlock()
		s.notify(StateIdle)
		return
	}

	s.startLocked()
	s.mu.Unlock()
	s.notify(StateResolving)
}

// SetRemote swaps the remote reference, e.g. when processing finishes and
// a final video replaces a placeholder. If the item is visible the chain
// restarts with the new reference; any in-flight or active playback of
// the old reference is torn down first.
func (s *LoopingSession) SetRemote(remote string) {
	s.mu.Lock()
	if s.closed || s.remote == remote {
		s.mu.Unlock()
		return
	}
	s.remote = remote
	s.teardownLocked()

	if !s.visible {
		s.mu.Unlock()
		s.notify(StateIdle)
		return
	}

	s.startLocked()
	s.mu.Unlock()
	s.notify(StateResolving)
}

// Close tears the session down permanently. Idempotent; further events
// are ignored.
func (s *LoopingSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	wasIdle := s.state == StateIdle
	s.teardownLocked()
	s.mu.Unlock()

	if !wasIdle {
		s.notify(StateIdle)
	}
}

// ============================================================================
// Internal Transitions
// ============================================================================

// startLocked launches the resolve chain. Caller holds s.mu and has
// verified the session is visible and not closed.
func (s *LoopingSession) startLocked() {
	s.state = StateResolving
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx, s.gen, s.remote)
}

// teardownLocked cancels in-flight work, detaches the loop, pauses and
// recycles the player, and clears references. Safe to call in any state;
// calling it twice is a no-op. Caller holds s.mu.
func (s *LoopingSession) teardownLocked() {
	s.gen++

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if s.player != nil {
		s.player.SetLooping(false)
		s.player.Pause()
		s.players.Recycle(s.player)
		s.player = nil
	}

	s.state = StateIdle
}

// run executes the resolve → prepare → obtain chain. A cancellation check
// follows every suspension point; a stale gen means the session moved on
// and the result is discarded.
func (s *LoopingSession) run(ctx context.Context, gen uint64, remote string) {
	path, err := s.cache.Resolve(ctx, remote)
	if err != nil {
		s.fail(gen, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	a, err := s.assets.Get(ctx, path)
	if err != nil {
		s.fail(gen, &cache.Error{Code: cache.CodePreparation, Remote: remote, Err: err})
		return
	}
	if ctx.Err() != nil {
		return
	}

	p := s.players.Obtain()

	s.mu.Lock()
	if s.gen != gen || ctx.Err() != nil {
		s.mu.Unlock()
		s.players.Recycle(p)
		return
	}

	if err := p.Load(a); err != nil {
		s.mu.Unlock()
		s.players.Recycle(p)
		s.fail(gen, &cache.Error{Code: cache.CodePreparation, Remote: remote, Err: err})
		return
	}

	p.SetLooping(true)
	p.SetMuted(true)
	p.Play()
	s.player = p
	s.cancel = nil
	s.state = StateActive
	s.mu.Unlock()

	logger.Debug("session active",
		logger.KeyRemote, remote,
		logger.KeyPath, path,
	)
	s.notify(StateActive)
}

// fail transitions a still-current chain back to Idle and reports the
// error. Cancellation is swallowed; the caller simply moved on.
func (s *LoopingSession) fail(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	s.state = StateIdle
	s.mu.Unlock()

	if cache.IsCancelled(err) {
		return
	}

	logger.Debug("session resolve failed", logger.KeyError, err.Error())
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
	s.notify(StateIdle)
}

func (s *LoopingSession) notify(state State) {
	if s.cb.OnStateChange != nil {
		s.cb.OnStateChange(state)
	}
}
