package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
	"github.com/joshuaramkissoon/clipcache/pkg/api/handlers"
)

// NewRouter creates and configures the chi router with all middleware
// and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//
// Routes:
//   - GET  /health       - Liveness probe
//   - GET  /health/ready - Readiness probe
//   - POST /resolve      - Resolve a remote video to a local path
//   - GET  /stats        - Cache and pool counters
//   - POST /purge        - Drop all committed cache entries
//   - GET  /metrics      - Prometheus exposition
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters. No blanket timeout: Resolve may
	// legitimately block on a transfer, bounded by the fetch client.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(deps.Store)
	cacheHandler := handlers.NewCacheHandler(deps.Cache, deps.Assets, deps.PlayerStats)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Post("/resolve", cacheHandler.Resolve)
	r.Get("/stats", cacheHandler.Stats)
	r.Post("/purge", cacheHandler.Purge)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs requests using the internal logger: request start
// at DEBUG, completion with status and duration at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}
