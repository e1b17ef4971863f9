package dispatch

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

// RoutedEvent is the payload of protocol.EventMessageRouted.
type RoutedEvent struct {
	Channel     string                `json:"channel"`
	MessageID   string                `json:"message_id,omitempty"`
	GroupID     string                `json:"group_id"`
	GroupName   string                `json:"group_name,omitempty"`
	SenderID    string                `json:"sender_id"`
	SenderName  string                `json:"sender_name,omitempty"`
	Text        string                `json:"text"`
	Destination routing.Destination   `json:"destination"`
	Rule        string                `json:"rule"`
	DealAction  routing.DealAction    `json:"deal_action,omitempty"`
	ReceiptType routing.ReceiptType   `json:"receipt_type,omitempty"`
	Trigger     *store.Trigger        `json:"trigger,omitempty"`
	Deal        *store.Deal           `json:"deal,omitempty"`
	Quote       *store.Quote          `json:"quote,omitempty"`
	Amount      *decimal.Decimal      `json:"amount,omitempty"`
	Attachments []bus.MediaAttachment `json:"attachments,omitempty"`
	RoutedAt    time.Time             `json:"routed_at"`
}

// NewRoutedEvent flattens a decision and its source message.
func NewRoutedEvent(res routing.Result, msg bus.InboundMessage, at time.Time) RoutedEvent {
	ev := RoutedEvent{
		Channel:     msg.Channel,
		MessageID:   msg.Metadata["message_id"],
		GroupID:     res.Context.GroupID,
		GroupName:   res.Context.GroupName,
		SenderID:    res.Context.SenderID,
		SenderName:  res.Context.SenderName,
		Text:        res.Context.Text,
		Destination: res.Destination,
		Rule:        res.Rule,
		DealAction:  res.Context.DealAction,
		ReceiptType: res.Context.ReceiptType,
		Trigger:     res.Context.Trigger,
		Deal:        res.Context.Deal,
		Quote:       res.Context.Quote,
		Attachments: msg.Attachments,
		RoutedAt:    at.UTC(),
	}
	if res.Context.HasAmount {
		amt := res.Context.Amount
		ev.Amount = &amt
	}
	return ev
}

// EventForwarder broadcasts every decision it receives as
// protocol.EventMessageRouted for WebSocket subscribers.
type EventForwarder struct {
	pub bus.EventPublisher
	now func() time.Time
}

// NewEventForwarder creates a forwarder publishing on pub.
func NewEventForwarder(pub bus.EventPublisher) *EventForwarder {
	return &EventForwarder{pub: pub, now: time.Now}
}

func (f *EventForwarder) Handle(_ context.Context, res routing.Result, msg bus.InboundMessage) error {
	f.pub.Broadcast(bus.Event{
		Name:    protocol.EventMessageRouted,
		Payload: NewRoutedEvent(res, msg, f.now()),
	})
	return nil
}
