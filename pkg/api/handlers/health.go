package handlers

import (
	"net/http"

	"github.com/joshuaramkissoon/clipcache/pkg/cache/disk"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints provide:
//   - Liveness probe: Is the daemon process running?
//   - Readiness probe: Is the cache directory writable?
type HealthHandler struct {
	store *disk.Store
}

// NewHealthHandler creates a new health handler. store may be nil, in
// which case readiness always reports unhealthy.
func NewHealthHandler(store *disk.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness handles GET /health. Returns 200 OK as long as the HTTP
// server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "clipcache",
	}))
}

// Readiness handles GET /health/ready. Returns 200 OK when the cache
// directory exists and is writable, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store not initialized"))
		return
	}

	if err := h.store.Writable(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"root": h.store.Root(),
	}))
}
