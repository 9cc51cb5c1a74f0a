package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

// seekBuffer is an in-memory io.ReadWriteSeeker with Truncate, standing in
// for the temp file a real transfer writes into.
type seekBuffer struct {
	buf bytes.Buffer
}

func (b *seekBuffer) Read(p []byte) (int, error)  { return b.buf.Read(p) }
func (b *seekBuffer) Write(p []byte) (int, error) { return b.buf.Write(p) }

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) { return 0, nil }

func (b *seekBuffer) Truncate(n int64) error {
	if n == 0 {
		b.buf.Reset()
	}
	return nil
}

func newTestClient(retries int) *Client {
	return New(Config{
		RequestTimeout: 5 * time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
	}, nil)
}

// ============================================================================
// Fetch Tests
// ============================================================================

func TestFetch(t *testing.T) {
	t.Run("DownloadsBody", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("video bytes"))
		}))
		defer srv.Close()

		var dst seekBuffer
		err := newTestClient(0).Fetch(context.Background(), srv.URL, &dst)
		require.NoError(t, err)
		assert.Equal(t, "video bytes", dst.buf.String())
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("eventually"))
		}))
		defer srv.Close()

		var dst seekBuffer
		err := newTestClient(3).Fetch(context.Background(), srv.URL, &dst)
		require.NoError(t, err)
		assert.Equal(t, "eventually", dst.buf.String())
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("PartialAttemptIsDiscardedOnRetry", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				// Body bytes followed by a 5xx never happen over HTTP, so
				// simulate a partial write by failing the first attempt.
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte("clean"))
		}))
		defer srv.Close()

		var dst seekBuffer
		dst.buf.WriteString("stale partial data")

		err := newTestClient(2).Fetch(context.Background(), srv.URL, &dst)
		require.NoError(t, err)
		assert.Equal(t, "clean", dst.buf.String(), "retry must truncate before rewriting")
	})

	t.Run("ClientErrorsAreNotRetried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		var dst seekBuffer
		err := newTestClient(5).Fetch(context.Background(), srv.URL, &dst)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load(), "404 must fail without retry")
	})

	t.Run("RetriesExhausted", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		var dst seekBuffer
		err := newTestClient(2).Fetch(context.Background(), srv.URL, &dst)
		require.Error(t, err)
		assert.Equal(t, int32(3), calls.Load(), "first attempt plus two retries")
	})

	t.Run("CancellationStopsRetrying", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var dst seekBuffer
		err := newTestClient(10).Fetch(ctx, srv.URL, &dst)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
