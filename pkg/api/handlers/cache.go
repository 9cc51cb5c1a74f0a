package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joshuaramkissoon/clipcache/pkg/asset"
	"github.com/joshuaramkissoon/clipcache/pkg/cache"
	"github.com/joshuaramkissoon/clipcache/pkg/player"
)

// CacheHandler exposes the video cache over HTTP: resolve, stats and
// purge. The asset pool is optional and enables the resolve "prepare"
// flag; the player stats func is optional and only feeds /stats.
type CacheHandler struct {
	cache   *cache.VideoCache
	assets  *asset.Pool
	players func() player.Stats
}

// NewCacheHandler creates a cache handler. assets and players may be
// nil.
func NewCacheHandler(c *cache.VideoCache, assets *asset.Pool, players func() player.Stats) *CacheHandler {
	return &CacheHandler{cache: c, assets: assets, players: players}
}

// resolveRequest is the body of POST /resolve. When Prepare is set the
// downloaded file is additionally probed for playability.
type resolveRequest struct {
	Remote  string `json:"remote"`
	Prepare bool   `json:"prepare,omitempty"`
}

// resolveResponse is the payload of a successful resolution.
type resolveResponse struct {
	Remote    string `json:"remote"`
	Path      string `json:"path"`
	Container string `json:"container,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// Resolve handles POST /resolve. The request blocks until the video is
// locally available or the transfer fails; concurrent requests for the
// same remote share one download.
func (h *CacheHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if req.Remote == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("remote is required"))
		return
	}

	path, err := h.cache.Resolve(r.Context(), req.Remote)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse(err.Error()))
		return
	}

	body := resolveResponse{Remote: req.Remote, Path: path}

	if req.Prepare && h.assets != nil {
		a, err := h.assets.Get(r.Context(), path)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse(err.Error()))
			return
		}
		body.Container = a.Container
		body.Size = a.Size
	}

	writeJSON(w, http.StatusOK, okResponse(body))
}

// statsResponse aggregates cache and pool counters.
type statsResponse struct {
	Cache   cache.Stats   `json:"cache"`
	Assets  *asset.Stats  `json:"assets,omitempty"`
	Players *player.Stats `json:"players,omitempty"`
}

// Stats handles GET /stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	body := statsResponse{Cache: h.cache.Stats()}
	if h.assets != nil {
		s := h.assets.Stats()
		body.Assets = &s
	}
	if h.players != nil {
		s := h.players()
		body.Players = &s
	}
	writeJSON(w, http.StatusOK, okResponse(body))
}

// purgeResponse reports how many entries Purge removed.
type purgeResponse struct {
	Removed int `json:"removed"`
}

// Purge handles POST /purge: removes every committed cache entry and
// drops the corresponding prepared assets.
func (h *CacheHandler) Purge(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.Purge(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	if h.assets != nil {
		h.assets.Purge()
	}
	writeJSON(w, http.StatusOK, okResponse(purgeResponse{Removed: removed}))
}

// statusFor maps a resolution error to an HTTP status.
func statusFor(err error) int {
	switch {
	case cache.IsNetwork(err):
		return http.StatusBadGateway
	case cache.IsCancelled(err), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
