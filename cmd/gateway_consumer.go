package cmd

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/dispatch"
	"github.com/nextlevelbuilder/otcdesk/internal/groups"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/tracing"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

// consumer reads inbound messages from the bus, routes them and hands the
// decision to the dispatcher.
type consumer struct {
	bus        *bus.MessageBus
	router     *routing.Router
	dispatcher *dispatch.Dispatcher
	groups     *groups.Directory
	queue      *dispatch.SerialQueue
	dedupe     *bus.DedupeCache
	tracer     trace.Tracer
	logger     *slog.Logger
}

func newConsumer(msgBus *bus.MessageBus, router *routing.Router, d *dispatch.Dispatcher, dir *groups.Directory, logger *slog.Logger) *consumer {
	return &consumer{
		bus:        msgBus,
		router:     router,
		dispatcher: d,
		groups:     dir,
		queue:      dispatch.NewSerialQueue(logger),
		// TTL=20min, max=5000 entries: bridge reconnects replay recent messages.
		dedupe: bus.NewDedupeCache(20*time.Minute, 5000),
		tracer: tracing.Tracer(),
		logger: logger,
	}
}

// Run consumes until ctx is done, then waits for in-flight messages.
func (c *consumer) Run(ctx context.Context) {
	c.logger.Info("inbound message consumer started")
	for {
		msg, ok := c.bus.ConsumeInbound(ctx)
		if !ok {
			c.queue.Wait()
			c.logger.Info("inbound message consumer stopped")
			return
		}
		if id := msg.Metadata["message_id"]; id != "" && c.dedupe.IsDuplicate(msg.Channel+":"+id) {
			c.logger.Debug("inbound.duplicate", "message_id", id, "group_id", msg.ChatID)
			continue
		}
		// Messages of one sender in one group keep their order; everything
		// else routes concurrently.
		c.queue.Submit(dispatch.SenderKey(msg.ChatID, msg.SenderID), func() {
			c.handle(ctx, msg)
		})
	}
}

func (c *consumer) handle(ctx context.Context, msg bus.InboundMessage) {
	c.register(ctx, msg)

	ctx, span := c.tracer.Start(ctx, "routing.route", trace.WithAttributes(
		attribute.String("group_id", msg.ChatID),
		attribute.String("sender_id", msg.SenderID),
		attribute.String("channel", msg.Channel),
	))
	defer span.End()

	res := c.router.Route(ctx, dispatch.FromInbound(msg, c.groups.IsControl(msg.ChatID)))
	span.SetAttributes(
		attribute.String("destination", string(res.Destination)),
		attribute.String("rule", res.Rule),
	)
	c.logger.Debug("inbound.routed",
		"group_id", msg.ChatID,
		"sender_id", msg.SenderID,
		"destination", res.Destination,
		"rule", res.Rule,
	)

	if err := c.dispatcher.Dispatch(ctx, res, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("inbound.dispatch_failed", "group_id", msg.ChatID, "destination", res.Destination, "error", err)
	}
}

// register adds a group seen for the first time so operators can promote it.
func (c *consumer) register(ctx context.Context, msg bus.InboundMessage) {
	if msg.ChatID == "" || c.groups.Known(msg.ChatID) {
		return
	}
	if err := c.groups.Ensure(ctx, msg.ChatID, msg.ChatName); err != nil {
		c.logger.Warn("groups.register_failed", "group_id", msg.ChatID, "error", err)
		return
	}
	c.bus.Broadcast(bus.Event{
		Name: protocol.EventGroupRegistered,
		Payload: map[string]string{
			"group_id":   msg.ChatID,
			"group_name": msg.ChatName,
			"mode":       string(c.groups.Mode(msg.ChatID)),
		},
	})
}
