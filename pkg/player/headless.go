package player

import (
	"sync"

	"github.com/joshuaramkissoon/clipcache/pkg/asset"
)

// Headless is a Player with no output device. It tracks full playback
// state so pooling, session wiring and stats behave exactly as with a
// real engine; the daemon uses it where no platform playback exists.
type Headless struct {
	mu      sync.Mutex
	loaded  *asset.PreparedAsset
	playing bool
	muted   bool
	looping bool
	closed  bool
}

// NewHeadless constructs a headless player. Matches the Factory
// signature.
func NewHeadless() Player {
	return &Headless{}
}

func (h *Headless) Load(a *asset.PreparedAsset) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrPlayerClosed
	}
	h.loaded = a
	return nil
}

func (h *Headless) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded != nil && !h.closed {
		h.playing = true
	}
}

func (h *Headless) Pause() {
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
}

func (h *Headless) Clear() {
	h.mu.Lock()
	h.loaded = nil
	h.playing = false
	h.mu.Unlock()
}

func (h *Headless) SetMuted(muted bool) {
	h.mu.Lock()
	h.muted = muted
	h.mu.Unlock()
}

func (h *Headless) SetLooping(looping bool) {
	h.mu.Lock()
	h.looping = looping
	h.mu.Unlock()
}

func (h *Headless) Close() error {
	h.mu.Lock()
	h.closed = true
	h.loaded = nil
	h.playing = false
	h.mu.Unlock()
	return nil
}

// Playing reports whether playback is running.
func (h *Headless) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

// Loaded reports whether content is bound.
func (h *Headless) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded != nil
}
