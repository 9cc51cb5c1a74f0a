package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuaramkissoon/clipcache/pkg/asset"
	"github.com/joshuaramkissoon/clipcache/pkg/cache"
	"github.com/joshuaramkissoon/clipcache/pkg/player"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeResolver struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	calls   atomic.Int32
	remotes []string
}

func (f *fakeResolver) failWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeResolver) Resolve(ctx context.Context, remote string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.remotes = append(f.remotes, remote)
	err := f.err
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", &cache.Error{Code: cache.CodeCancelled, Remote: remote, Err: ctx.Err()}
		}
	}
	if err != nil {
		return "", err
	}
	return "/cache/" + remote, nil
}

type fakeAssets struct {
	err   error
	calls atomic.Int32
}

func (f *fakeAssets) Get(ctx context.Context, path string) (*asset.PreparedAsset, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &asset.PreparedAsset{Path: path, Size: 1, Container: "mp4"}, nil
}

type fakePlayer struct {
	mu      sync.Mutex
	loaded  *asset.PreparedAsset
	playing bool
	muted   bool
	looping bool
	closed  bool
}

func (f *fakePlayer) Load(a *asset.PreparedAsset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = a
	return nil
}

func (f *fakePlayer) Play()  { f.mu.Lock(); f.playing = true; f.mu.Unlock() }
func (f *fakePlayer) Pause() { f.mu.Lock(); f.playing = false; f.mu.Unlock() }
func (f *fakePlayer) Clear() { f.mu.Lock(); f.loaded = nil; f.mu.Unlock() }
func (f *fakePlayer) SetMuted(m bool) {
	f.mu.Lock()
	f.muted = m
	f.mu.Unlock()
}
func (f *fakePlayer) SetLooping(l bool) {
	f.mu.Lock()
	f.looping = l
	f.mu.Unlock()
}
func (f *fakePlayer) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakePlayer) snapshot() fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakePlayer{
		loaded:  f.loaded,
		playing: f.playing,
		muted:   f.muted,
		looping: f.looping,
		closed:  f.closed,
	}
}

type harness struct {
	resolver *fakeResolver
	assets   *fakeAssets
	pool     *player.Pool
	made     []*fakePlayer
	mu       sync.Mutex
}

func newHarness() *harness {
	h := &harness{resolver: &fakeResolver{}, assets: &fakeAssets{}}
	h.pool = player.NewPool(func() player.Player {
		p := &fakePlayer{}
		h.mu.Lock()
		h.made = append(h.made, p)
		h.mu.Unlock()
		return p
	}, 0)
	return h
}

func (h *harness) players() []*fakePlayer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*fakePlayer(nil), h.made...)
}

func waitForState(t *testing.T, s *LoopingSession, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State() == want
	}, 2*time.Second, 5*time.Millisecond, "waiting for state %s", want)
}

// ============================================================================
// Tests
// ============================================================================

func TestSession_VisibleActivatesPlayback(t *testing.T) {
	h := newHarness()
	s := New(h.resolver, h.assets, h.pool, "clip-1.mp4", Callbacks{})

	assert.Equal(t, StateIdle, s.State())
	s.SetVisible(true)
	waitForState(t, s, StateActive)

	players := h.players()
	require.Len(t, players, 1)
	got := players[0].snapshot()
	assert.Equal(t, "/cache/clip-1.mp4", got.loaded.Path)
	assert.True(t, got.playing)
	assert.True(t, got.muted, "playback is forced muted")
	assert.True(t, got.looping, "loop attachment is set")
}

func TestSession_InvisibleTearsDown(t *testing.T) {
	h := newHarness()
	s := New(h.resolver, h.assets, h.pool, "clip-1.mp4", Callbacks{})

	s.SetVisible(true)
	waitForState(t, s, StateActive)

	s.SetVisible(false)
	assert.Equal(t, StateIdle, s.State())

	got := h.players()[0].snapshot()
	assert.False(t, got.playing, "player is paused on teardown")
	assert.False(t, got.looping, "loop attachment is detached")
	assert.Nil(t, got.loaded, "pool cleared content on recycle")
	assert.Equal(t, 1, h.pool.FreeCount(), "player returned to the pool")
}

func TestSession_RedundantVisibilityEventsAreNoops(t *testing.T) {
	h := newHarness()
	s := New(h.resolver, h.assets, h.pool, "clip-1.mp4", Callbacks{})

	s.SetVisible(true)
	waitForState(t, s, StateActive)
	s.SetVisible(true)

	assert.Equal(t, int32(1), h.resolver.calls.Load())
	s.SetVisible(false)
	s.SetVisible(false)
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_TeardownDuringResolveCancelsWork(t *testing.T) {
	h := newHarness()
	h.resolver.block = make(chan struct{})
	var reported atomic.Int32
	s := New(h.resolver, h.assets, h.pool, "clip-1.mp4", Callbacks{
		OnError: func(error) { reported.Add(1) },
	})

	s.SetVisible(true)
	require.Eventually(t, func() bool {
		return h.resolver.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateResolving, s.State())

	s.SetVisible(false)
	assert.Equal(t, StateIdle, s.State())

	// The cancelled chain never obtains a player and never reports.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.players())
	assert.Equal(t, int32(0), reported.Load(), "cancellation is not an error")
	assert.Equal(t, int32(0), h.assets.calls.Load())
}

func TestSession_StaleChainResultIsDiscarded(t *testing.T) {
	h := newHarness()
	h.resolver.block = make(chan struct{})
	s := New(h.resolver, h.assets, h.pool, "clip-1.mp4", Callbacks{})

	s.SetVisible(true)
	require.Eventually(t, func() bool {
		return h.resolver.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	s.SetVisible(false)

	// The resolver now unblocks, but the chain's generation is stale.
	close(h.resolver.block)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, h.players(), "stale chain never wires a player")
}

func TestSession_ResolveFailureIsNonFatal(t *testing.T) {
	h := newHarness()
	netErr := &cache.Error{Code: cache.CodeNetwork, Remote: "clip-1.mp4", Err: errors.New("refused")}
	h.resolver.failWith(netErr)

	errs := make(chan error, 1)
	s := New(h.resolver, h.assets, h.pool, "clip-1.mp4", Callbacks{
		OnError: func(err error) { errs <- err },
	})

	s.SetVisible(true)
	select {
	case err := <-errs:
		assert.True(t, cache.IsNetwork(err))
	case <-time.After(2 * time.Second):
		t.Fatal("error was not reported")
	}
	waitForState(t, s, StateIdle)

	// Scrolling away and back retries.
	h.resolver.failWith(nil)
	s.SetVisible(false)
	s.SetVisible(true)
	waitForState(t, s, StateActive)
	assert.Equal(t, int32(2), h.resolver.calls.Load())
}

func TestSession_PreparationFailureIsReportedAsSuch(t *testing.T) {
	h := newHarness()
	h.assets.err = asset.ErrUnrecognizedContainer

	errs := make(chan error, 1)
	s := New(h.resolver, h.assets, h.pool, "clip-1.mp4", Callbacks{
		OnError: func(err error) { errs <- err },
	})

	s.SetVisible(true)
	select {
	case err := <-errs:
		assert.True(t, cache.IsPreparation(err))
		assert.ErrorIs(t, err, asset.ErrUnrecognizedContainer)
	case <-time.After(2 * time.Second):
		t.Fatal("error was not reported")
	}
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_RemoteSwapRestartsChain(t *testing.T) {
	h := newHarness()
	s := New(h.resolver, h.assets, h.pool, "placeholder.mp4", Callbacks{})

	s.SetVisible(true)
	waitForState(t, s, StateActive)

	s.SetRemote("final.mp4")
	waitForState(t, s, StateActive)

	require.Eventually(t, func() bool {
		return h.resolver.calls.Load() == 2
	}, 2*time.Second, 5*time.Millisecond)
	h.resolver.mu.Lock()
	remotes := append([]string(nil), h.resolver.remotes...)
	h.resolver.mu.Unlock()
	assert.Equal(t, []string{"placeholder.mp4", "final.mp4"}, remotes)

	// The old player went back to the pool and was reused for the new
	// reference.
	players := h.players()
	require.Len(t, players, 1)
	assert.Equal(t, "/cache/final.mp4", players[0].snapshot().loaded.Path)
}

func TestSession_RemoteSwapWhileHiddenStaysIdle(t *testing.T) {
	h := newHarness()
	s := New(h.resolver, h.assets, h.pool, "a.mp4", Callbacks{})

	s.SetRemote("b.mp4")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, int32(0), h.resolver.calls.Load())
}

func TestSession_Close(t *testing.T) {
	t.Run("TearsDownActivePlayback", func(t *testing.T) {
		h := newHarness()
		s := New(h.resolver, h.assets, h.pool, "a.mp4", Callbacks{})

		s.SetVisible(true)
		waitForState(t, s, StateActive)

		s.Close()
		s.Close()
		assert.Equal(t, StateIdle, s.State())
		assert.Equal(t, 1, h.pool.FreeCount())
	})

	t.Run("IgnoresEventsAfterClose", func(t *testing.T) {
		h := newHarness()
		s := New(h.resolver, h.assets, h.pool, "a.mp4", Callbacks{})

		s.Close()
		s.SetVisible(true)
		s.SetRemote("b.mp4")
		time.Sleep(20 * time.Millisecond)

		assert.Equal(t, StateIdle, s.State())
		assert.Equal(t, int32(0), h.resolver.calls.Load())
	})
}
