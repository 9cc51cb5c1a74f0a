package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuaramkissoon/clipcache/pkg/asset"
)

func TestHeadless(t *testing.T) {
	t.Run("PlayRequiresLoadedContent", func(t *testing.T) {
		h := NewHeadless().(*Headless)
		h.Play()
		assert.False(t, h.Playing())

		require.NoError(t, h.Load(&asset.PreparedAsset{Path: "/x"}))
		h.Play()
		assert.True(t, h.Playing())
	})

	t.Run("ClearStopsAndUnloads", func(t *testing.T) {
		h := NewHeadless().(*Headless)
		require.NoError(t, h.Load(&asset.PreparedAsset{Path: "/x"}))
		h.Play()

		h.Clear()
		assert.False(t, h.Playing())
		assert.False(t, h.Loaded())
	})

	t.Run("ClosedPlayerRejectsLoad", func(t *testing.T) {
		h := NewHeadless().(*Headless)
		require.NoError(t, h.Close())
		assert.ErrorIs(t, h.Load(&asset.PreparedAsset{Path: "/x"}), ErrPlayerClosed)
	})

	t.Run("PoolsCleanly", func(t *testing.T) {
		pool := NewPool(NewHeadless, 2)
		p := pool.Obtain().(*Headless)
		require.NoError(t, p.Load(&asset.PreparedAsset{Path: "/x"}))
		p.Play()

		pool.Recycle(p)
		got := pool.Obtain().(*Headless)
		assert.Same(t, p, got)
		assert.False(t, got.Playing())
		assert.False(t, got.Loaded())
	})
}
