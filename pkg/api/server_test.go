package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuaramkissoon/clipcache/pkg/cache"
	"github.com/joshuaramkissoon/clipcache/pkg/cache/disk"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, remote string, dst io.ReadWriteSeeker) error {
	_, err := dst.Write([]byte("payload"))
	return err
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := disk.NewWithRoot(filepath.Join(t.TempDir(), "VideoCache"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := cache.New(store, stubFetcher{}, cache.DefaultConfig(), nil)
	require.NoError(t, err)

	return NewRouter(Deps{Store: store, Cache: c})
}

func TestRouter(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	t.Run("Health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Ready", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health/ready")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("ResolveThenStats", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/resolve", "application/json",
			strings.NewReader(`{"remote":"https://cdn/a.mp4"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				Path string `json:"path"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NotEmpty(t, body.Data.Path)

		stats, err := http.Get(srv.URL + "/stats")
		require.NoError(t, err)
		defer stats.Body.Close()
		assert.Equal(t, http.StatusOK, stats.StatusCode)
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("RootRedirectsToHealth", func(t *testing.T) {
		client := &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
		resp, err := client.Get(srv.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.Equal(t, "/health", resp.Header.Get("Location"))
	})
}

func TestServer_GracefulShutdown(t *testing.T) {
	store, err := disk.NewWithRoot(filepath.Join(t.TempDir(), "VideoCache"))
	require.NoError(t, err)
	defer store.Close()

	c, err := cache.New(store, stubFetcher{}, cache.DefaultConfig(), nil)
	require.NoError(t, err)

	srv := NewServer(Config{Listen: "127.0.0.1:0"}, Deps{Store: store, Cache: c})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	require.NoError(t, srv.Stop(context.Background()), "stop is idempotent")
}
