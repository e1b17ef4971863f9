package methods

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/otcdesk/internal/dispatch"
	"github.com/nextlevelbuilder/otcdesk/internal/gateway"
	httpapi "github.com/nextlevelbuilder/otcdesk/internal/http"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

// RoutingMethods serves routing dry runs over WebSocket RPC.
type RoutingMethods struct {
	router    *routing.Router
	isControl func(string) bool
}

// NewRoutingMethods creates the handler. router should come from
// routing.NewPreview.
func NewRoutingMethods(router *routing.Router, isControl func(string) bool) *RoutingMethods {
	if isControl == nil {
		isControl = func(string) bool { return false }
	}
	return &RoutingMethods{router: router, isControl: isControl}
}

// Register registers the routing RPC methods.
func (m *RoutingMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodRoutePreview, m.handlePreview)
	router.Register(protocol.MethodRouteRules, m.handleRules)
}

func (m *RoutingMethods) handlePreview(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params httpapi.PreviewRequest
	if req.Params == nil || json.Unmarshal(req.Params, &params) != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params"))
		return
	}
	if params.GroupID == "" || params.SenderID == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "group_id and sender_id are required"))
		return
	}
	mc := dispatch.FromInbound(params.Inbound(), m.isControl(params.GroupID))
	client.SendResponse(protocol.NewOKResponse(req.ID, m.router.Route(ctx, mc)))
}

func (m *RoutingMethods) handleRules(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{"rules": m.router.Rules()}))
}
