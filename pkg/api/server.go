package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
	"github.com/joshuaramkissoon/clipcache/pkg/asset"
	"github.com/joshuaramkissoon/clipcache/pkg/cache"
	"github.com/joshuaramkissoon/clipcache/pkg/cache/disk"
	"github.com/joshuaramkissoon/clipcache/pkg/player"
)

// Deps carries the subsystems the API serves. Store and Cache are
// required; Assets and PlayerStats may be nil.
type Deps struct {
	Store       *disk.Store
	Cache       *cache.VideoCache
	Assets      *asset.Pool
	PlayerStats func() player.Stats
}

// Server provides the HTTP API for the clipcache daemon.
//
// Endpoints:
//   - GET  /health:       Liveness probe
//   - GET  /health/ready: Readiness probe
//   - POST /resolve:      Resolve a remote video to a local path
//   - GET  /stats:        Cache and pool counters
//   - POST /purge:        Drop all committed cache entries
//   - GET  /metrics:      Prometheus exposition
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin
// serving requests. Defaults are applied here so the server works
// correctly even when created directly in tests.
func NewServer(config Config, deps Deps) *Server {
	config.applyDefaults()

	server := &http.Server{
		Addr:         config.Listen,
		Handler:      NewRouter(deps),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}
}

// Start starts the API HTTP server and blocks until the context is
// cancelled or an error occurs. Cancellation triggers graceful shutdown
// bounded by shutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", s.config.Listen)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// A fresh context: the cancelled ctx would abort shutdown
		// immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err.Error())
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Addr returns the address the server binds to.
func (s *Server) Addr() string {
	return s.config.Listen
}
