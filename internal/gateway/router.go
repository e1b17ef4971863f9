package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

// MethodHandler handles one RPC request. Handlers reply through client.
type MethodHandler func(ctx context.Context, client *Client, req *protocol.RequestFrame)

// MethodRouter dispatches request frames to registered handlers.
type MethodRouter struct {
	server   *Server
	mu       sync.RWMutex
	handlers map[string]MethodHandler
}

// NewMethodRouter creates a router with the built-in connect and health
// methods registered.
func NewMethodRouter(s *Server) *MethodRouter {
	r := &MethodRouter{server: s, handlers: make(map[string]MethodHandler)}
	r.Register(protocol.MethodConnect, r.handleConnect)
	r.Register(protocol.MethodHealth, r.handleHealth)
	r.Register(protocol.MethodStatus, r.handleStatus)
	return r
}

// Register adds or replaces the handler for method.
func (r *MethodRouter) Register(method string, h MethodHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Methods returns the registered method names.
func (r *MethodRouter) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		out = append(out, m)
	}
	return out
}

// Handle routes req. Unauthenticated clients may only call connect and
// health when the gateway has a token.
func (r *MethodRouter) Handle(ctx context.Context, c *Client, req *protocol.RequestFrame) {
	r.mu.RLock()
	h, ok := r.handlers[req.Method]
	r.mu.RUnlock()

	if !ok {
		c.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrMethodNotFound, "unknown method: "+req.Method))
		return
	}
	if req.Method != protocol.MethodConnect && req.Method != protocol.MethodHealth && !c.Authenticated() {
		c.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnauthorized, "connect first"))
		return
	}
	if rl := r.server.rateLimiter; rl != nil && !rl.Allow(c.id) {
		slog.Warn("security.rate_limited", "client_id", c.id, "method", req.Method)
		c.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrRateLimited, "rate limit exceeded"))
		return
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("gateway.method_panic", "method", req.Method, "client_id", c.id, "panic", p)
			c.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, "internal error"))
		}
	}()
	h(ctx, c, req)
}

func (r *MethodRouter) handleConnect(_ context.Context, c *Client, req *protocol.RequestFrame) {
	var params struct {
		Token string `json:"token"`
	}
	if req.Params != nil {
		_ = json.Unmarshal(req.Params, &params)
	}
	if !r.server.checkToken(params.Token) {
		slog.Warn("security.auth_failed", "client_id", c.id)
		c.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnauthorized, "invalid token"))
		return
	}
	c.authenticated.Store(true)
	c.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"client_id": c.id,
		"protocol":  protocol.ProtocolVersion,
	}))
}

func (r *MethodRouter) handleHealth(_ context.Context, c *Client, req *protocol.RequestFrame) {
	c.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"status":   "ok",
		"protocol": protocol.ProtocolVersion,
	}))
}

func (r *MethodRouter) handleStatus(_ context.Context, c *Client, req *protocol.RequestFrame) {
	c.SendResponse(protocol.NewOKResponse(req.ID, r.server.Status()))
}
