// Package dispatch hands routing decisions to the handlers registered for
// each destination.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
)

// Handler processes one routed message.
type Handler interface {
	Handle(ctx context.Context, res routing.Result, msg bus.InboundMessage) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, res routing.Result, msg bus.InboundMessage) error

func (f HandlerFunc) Handle(ctx context.Context, res routing.Result, msg bus.InboundMessage) error {
	return f(ctx, res, msg)
}

// Chain runs every handler in order and joins their errors. A failing
// handler does not stop the ones after it.
func Chain(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, res routing.Result, msg bus.InboundMessage) error {
		var errs []error
		for _, h := range handlers {
			if err := h.Handle(ctx, res, msg); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Dispatcher maps destinations to handlers. IGNORE never runs anything.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[routing.Destination][]Handler
	all      []Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[routing.Destination][]Handler),
	}
}

// Register adds h for dest. Handlers run in registration order.
func (d *Dispatcher) Register(dest routing.Destination, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[dest] = append(d.handlers[dest], h)
}

// RegisterAll adds h for every destination except IGNORE. It runs after the
// destination-specific handlers.
func (d *Dispatcher) RegisterAll(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, h)
}

// Dispatch runs the handlers for res.Destination. Handler errors and panics
// are logged and returned; they never propagate as panics.
func (d *Dispatcher) Dispatch(ctx context.Context, res routing.Result, msg bus.InboundMessage) error {
	if res.Destination == routing.DestIgnore {
		return nil
	}

	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[res.Destination])+len(d.all))
	hs = append(hs, d.handlers[res.Destination]...)
	hs = append(hs, d.all...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := d.run(ctx, h, res, msg); err != nil {
			d.logger.Warn("dispatch.handler_failed",
				"destination", res.Destination,
				"group_id", res.Context.GroupID,
				"sender_id", res.Context.SenderID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) run(ctx context.Context, h Handler, res routing.Result, msg bus.InboundMessage) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.Handle(ctx, res, msg)
}
