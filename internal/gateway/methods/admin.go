package methods

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/gateway"
	"github.com/nextlevelbuilder/otcdesk/internal/groups"
	"github.com/nextlevelbuilder/otcdesk/internal/invalidate"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

// Outbox queues outbound text for a named channel.
type Outbox interface {
	Enqueue(channelName, chatID, content string) error
}

// AdminMethods covers groups, outbound replies and cache invalidation.
type AdminMethods struct {
	groups *groups.Directory
	outbox Outbox
	inv    *invalidate.Invalidator
}

// NewAdminMethods creates the handler. Any dependency may be nil; its
// methods are then not registered.
func NewAdminMethods(dir *groups.Directory, outbox Outbox, inv *invalidate.Invalidator) *AdminMethods {
	return &AdminMethods{groups: dir, outbox: outbox, inv: inv}
}

// Register registers the admin RPC methods.
func (m *AdminMethods) Register(router *gateway.MethodRouter) {
	if m.groups != nil {
		router.Register(protocol.MethodGroupsList, m.handleGroupsList)
		router.Register(protocol.MethodGroupsSetMode, m.handleSetMode)
	}
	if m.outbox != nil {
		router.Register(protocol.MethodSend, m.handleSend)
	}
	if m.inv != nil {
		router.Register(protocol.MethodCacheInvalidate, m.handleInvalidate)
	}
}

func (m *AdminMethods) handleGroupsList(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	list := m.groups.List()
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{"groups": list, "count": len(list)}))
}

func (m *AdminMethods) handleSetMode(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p struct {
		GroupID string          `json:"group_id"`
		Mode    store.GroupMode `json:"mode"`
	}
	if req.Params != nil {
		_ = json.Unmarshal(req.Params, &p)
	}
	if p.GroupID == "" || !p.Mode.Valid() {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "group_id and a valid mode are required"))
		return
	}
	if err := m.groups.SetMode(ctx, p.GroupID, p.Mode); err != nil {
		slog.Error("groups.set_mode_failed", "group_id", p.GroupID, "error", err)
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, "failed to set mode"))
		return
	}
	// Other instances reload the group from the table.
	if m.inv != nil {
		if err := m.inv.Invalidate(ctx, bus.CacheKindGroups, p.GroupID); err != nil {
			slog.Warn("groups.invalidate_failed", "group_id", p.GroupID, "error", err)
		}
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]string{"group_id": p.GroupID, "mode": string(p.Mode)}))
}

func (m *AdminMethods) handleSend(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p struct {
		Channel string `json:"channel"`
		ChatID  string `json:"chat_id"`
		Content string `json:"content"`
	}
	if req.Params != nil {
		_ = json.Unmarshal(req.Params, &p)
	}
	if p.Channel == "" {
		p.Channel = "whatsapp"
	}
	if p.ChatID == "" || p.Content == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "chat_id and content are required"))
		return
	}
	if err := m.outbox.Enqueue(p.Channel, p.ChatID, p.Content); err != nil {
		slog.Warn("gateway.send_failed", "channel", p.Channel, "chat_id", p.ChatID, "error", err)
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]string{"status": "queued"}))
}

func (m *AdminMethods) handleInvalidate(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p bus.CacheInvalidatePayload
	if req.Params != nil {
		_ = json.Unmarshal(req.Params, &p)
	}
	if p.Kind == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "kind is required"))
		return
	}
	if err := m.inv.Invalidate(ctx, p.Kind, p.Key); err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]string{"status": "ok"}))
}
