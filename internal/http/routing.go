package http

import (
	"net/http"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/dispatch"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
)

// PreviewRequest is a message to dry-run through the router.
type PreviewRequest struct {
	GroupID     string                `json:"group_id"`
	GroupName   string                `json:"group_name,omitempty"`
	SenderID    string                `json:"sender_id"`
	SenderName  string                `json:"sender_name,omitempty"`
	Text        string                `json:"text"`
	Attachments []bus.MediaAttachment `json:"attachments,omitempty"`
}

// Inbound converts the request to the channel message shape.
func (p PreviewRequest) Inbound() bus.InboundMessage {
	return bus.InboundMessage{
		ChatID:      p.GroupID,
		ChatName:    p.GroupName,
		SenderID:    p.SenderID,
		SenderName:  p.SenderName,
		Content:     p.Text,
		PeerKind:    "group",
		Attachments: p.Attachments,
	}
}

// RoutingHandler serves routing dry runs.
type RoutingHandler struct {
	router    *routing.Router
	isControl func(groupID string) bool
	token     string
}

// NewRoutingHandler creates the handler. router should come from
// routing.NewPreview so previews never accept quotes.
func NewRoutingHandler(router *routing.Router, isControl func(string) bool, token string) *RoutingHandler {
	if isControl == nil {
		isControl = func(string) bool { return false }
	}
	return &RoutingHandler{router: router, isControl: isControl, token: token}
}

// RegisterRoutes registers the routing routes on the given mux.
func (h *RoutingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/route/preview", requireToken(h.token, h.handlePreview))
	mux.HandleFunc("GET /v1/route/rules", requireToken(h.token, h.handleRules))
}

func (h *RoutingHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GroupID == "" || req.SenderID == "" {
		writeError(w, http.StatusBadRequest, "group_id and sender_id are required")
		return
	}
	mc := dispatch.FromInbound(req.Inbound(), h.isControl(req.GroupID))
	writeJSON(w, http.StatusOK, h.router.Route(r.Context(), mc))
}

func (h *RoutingHandler) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": h.router.Rules()})
}
