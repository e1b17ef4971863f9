package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nextlevelbuilder/otcdesk/internal/groups"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// GroupsHandler lists groups, changes their mode and shows observed messages.
type GroupsHandler struct {
	dir   *groups.Directory
	log   store.MessageLogStore
	token string
}

// NewGroupsHandler creates a handler for group endpoints.
func NewGroupsHandler(dir *groups.Directory, log store.MessageLogStore, token string) *GroupsHandler {
	return &GroupsHandler{dir: dir, log: log, token: token}
}

// RegisterRoutes registers all group routes on the given mux.
func (h *GroupsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/groups", requireToken(h.token, h.handleList))
	mux.HandleFunc("PUT /v1/groups/{id}/mode", requireToken(h.token, h.handleSetMode))
	mux.HandleFunc("GET /v1/groups/{id}/messages", requireToken(h.token, h.handleMessages))
}

func (h *GroupsHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	list := h.dir.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": list, "count": len(list)})
}

func (h *GroupsHandler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode store.GroupMode `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if !body.Mode.Valid() {
		writeError(w, http.StatusBadRequest, "mode must be one of paused, learning, assisted, active")
		return
	}
	id := r.PathValue("id")
	if err := h.dir.SetMode(r.Context(), id, body.Mode); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "group not found")
			return
		}
		slog.Error("groups.set_mode_failed", "group_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set mode")
		return
	}
	slog.Info("groups.mode_changed", "group_id", id, "mode", body.Mode)
	writeJSON(w, http.StatusOK, map[string]string{"group_id": id, "mode": string(body.Mode)})
}

func (h *GroupsHandler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if h.log == nil {
		writeError(w, http.StatusNotFound, "message log not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.log.ListByGroup(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		slog.Error("groups.messages_failed", "group_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": entries})
}
