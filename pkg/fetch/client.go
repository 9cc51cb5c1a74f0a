// Package fetch is the network transfer provider for the video cache.
//
// The cache treats transfer mechanics as opaque: timeouts, retry and backoff
// all live here. The cache itself never retries on top of this client.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
	"github.com/joshuaramkissoon/clipcache/pkg/bufpool"
)

// Default transfer settings.
const (
	// DefaultRequestTimeout bounds a single transfer attempt.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultInitialBackoff is the starting backoff interval.
	DefaultInitialBackoff = 500 * time.Millisecond
)

// Config holds configuration for the transfer client.
type Config struct {
	// RequestTimeout bounds each individual attempt.
	// Default: 30s
	RequestTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int

	// InitialBackoff is the starting interval for exponential backoff.
	// Default: 500ms
	InitialBackoff time.Duration
}

// DefaultConfig returns the default transfer client configuration.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: DefaultRequestTimeout,
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
	}
}

// Client downloads remote video resources over HTTP with bounded retry and
// exponential backoff. Safe for concurrent use.
type Client struct {
	http   *http.Client
	config Config
}

// New creates a transfer client. A nil httpClient uses http.DefaultClient.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, config: cfg}
}

// Fetch downloads remote into dst. Retries transient failures (connection
// errors, 5xx, 429) with exponential backoff; 4xx responses fail
// immediately. Honors ctx cancellation between and during attempts.
//
// dst is truncated via io.Seeker when an attempt is retried, so a partial
// write from a failed attempt never survives into the result.
func (c *Client) Fetch(ctx context.Context, remote string, dst io.ReadWriteSeeker) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.InitialBackoff

	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 {
			logger.Debug("retrying transfer",
				logger.KeyRemote, remote,
				logger.KeyAttempt, attempt,
				logger.KeyMaxRetries, c.config.MaxRetries+1,
			)
			// Drop bytes from the failed attempt.
			if err := truncate(dst); err != nil {
				return backoff.Permanent(fmt.Errorf("reset temp file: %w", err))
			}
		}
		return c.attempt(ctx, remote, dst)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.config.MaxRetries)),
		ctx,
	)
	return backoff.Retry(operation, b)
}

// attempt performs one bounded HTTP GET.
func (c *Client) attempt(ctx context.Context, remote string, dst io.Writer) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, remote, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("transfer %s: %w", remote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("transfer %s: unexpected status %d", remote, resp.StatusCode)
		if retryableStatus(resp.StatusCode) {
			return err
		}
		return backoff.Permanent(err)
	}

	buf := bufpool.Get(bufpool.StreamSize)
	defer bufpool.Put(buf)

	if _, err := io.CopyBuffer(dst, resp.Body, buf); err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("transfer %s: %w", remote, err)
	}
	return nil
}

// retryableStatus reports whether a non-200 status is worth retrying.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func truncate(dst io.ReadWriteSeeker) error {
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if t, ok := dst.(interface{ Truncate(int64) error }); ok {
		return t.Truncate(0)
	}
	return nil
}
