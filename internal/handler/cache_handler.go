package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netopscockpit/cockpit/internal/cache"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/pkg/response"
)

// CacheHandler exposes cache introspection and invalidation.
type CacheHandler struct {
	cache *cache.Cache
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(c *cache.Cache) *CacheHandler {
	return &CacheHandler{cache: c}
}

// Routes returns a chi router with cache routes.
func (h *CacheHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/stats", h.Stats)
	r.Post("/clear", h.Clear)

	return r
}

// Stats handles GET /api/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.cache.Stats())
}

// clearRequest scopes a cache clear; an empty namespace clears
// everything.
type clearRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

// Clear handles POST /api/cache/clear
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
			return
		}
	}

	var cleared int
	if req.Namespace == "" {
		cleared = h.cache.Stats().Items
		h.cache.ClearAll()
	} else {
		cleared = h.cache.ClearNamespace(req.Namespace)
	}
	response.OK(w, map[string]any{
		"cleared":   cleared,
		"namespace": req.Namespace,
	})
}
