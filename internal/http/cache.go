package http

import (
	"net/http"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/invalidate"
)

// CacheHandler evicts trigger, group and keyword caches on demand.
type CacheHandler struct {
	inv   *invalidate.Invalidator
	token string
}

// NewCacheHandler creates the cache invalidation handler.
func NewCacheHandler(inv *invalidate.Invalidator, token string) *CacheHandler {
	return &CacheHandler{inv: inv, token: token}
}

// RegisterRoutes registers the cache routes on the given mux.
func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/cache/invalidate", requireToken(h.token, h.handleInvalidate))
}

func (h *CacheHandler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var p bus.CacheInvalidatePayload
	if !decodeBody(w, r, &p) {
		return
	}
	if p.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}
	if err := h.inv.Invalidate(r.Context(), p.Kind, p.Key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "kind": p.Kind, "key": p.Key})
}
