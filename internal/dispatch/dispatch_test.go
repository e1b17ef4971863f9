package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

func result(dest routing.Destination) routing.Result {
	return routing.Result{
		Destination: dest,
		Rule:        routing.RuleTriggerMatch,
		Context:     routing.MessageContext{GroupID: "g1@g.us", SenderID: "s1", Text: "cotação"},
	}
}

func TestDispatcherRoutesByDestination(t *testing.T) {
	d := NewDispatcher(nil)
	var got []string
	record := func(name string) Handler {
		return HandlerFunc(func(context.Context, routing.Result, bus.InboundMessage) error {
			got = append(got, name)
			return nil
		})
	}
	d.Register(routing.DestPrice, record("price"))
	d.Register(routing.DestDeal, record("deal"))
	d.RegisterAll(record("all"))

	tests := []struct {
		dest routing.Destination
		want []string
	}{
		{routing.DestPrice, []string{"price", "all"}},
		{routing.DestDeal, []string{"deal", "all"}},
		{routing.DestReceipt, []string{"all"}},
		{routing.DestIgnore, nil},
	}
	for _, tt := range tests {
		got = nil
		if err := d.Dispatch(context.Background(), result(tt.dest), bus.InboundMessage{}); err != nil {
			t.Fatalf("Dispatch(%s): %v", tt.dest, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("Dispatch(%s) ran %v, want %v", tt.dest, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Dispatch(%s) ran %v, want %v", tt.dest, got, tt.want)
			}
		}
	}
}

func TestDispatcherContainsFailures(t *testing.T) {
	d := NewDispatcher(nil)
	ran := false
	d.Register(routing.DestDeal, HandlerFunc(func(context.Context, routing.Result, bus.InboundMessage) error {
		panic("boom")
	}))
	d.Register(routing.DestDeal, HandlerFunc(func(context.Context, routing.Result, bus.InboundMessage) error {
		return errors.New("downstream offline")
	}))
	d.Register(routing.DestDeal, HandlerFunc(func(context.Context, routing.Result, bus.InboundMessage) error {
		ran = true
		return nil
	}))

	err := d.Dispatch(context.Background(), result(routing.DestDeal), bus.InboundMessage{})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !ran {
		t.Error("handler after failures did not run")
	}
}

func TestChain(t *testing.T) {
	calls := 0
	h := Chain(
		HandlerFunc(func(context.Context, routing.Result, bus.InboundMessage) error { calls++; return errors.New("a") }),
		HandlerFunc(func(context.Context, routing.Result, bus.InboundMessage) error { calls++; return nil }),
	)
	if err := h.Handle(context.Background(), result(routing.DestPrice), bus.InboundMessage{}); err == nil {
		t.Error("expected error from first handler")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestFromInbound(t *testing.T) {
	msg := bus.InboundMessage{
		ChatID:     "g1@g.us",
		ChatName:   "Mesa",
		SenderID:   "s1",
		SenderName: "Ana",
		Content:    "segue",
		Attachments: []bus.MediaAttachment{
			{Kind: bus.AttachmentImage, ContentType: "image/png"},
			{Kind: bus.AttachmentDocument, ContentType: "application/pdf", FileName: "c.pdf"},
			{Kind: bus.AttachmentDocument, ContentType: "text/plain"},
		},
	}
	mc := FromInbound(msg, true)
	if mc.GroupID != "g1@g.us" || mc.GroupName != "Mesa" || mc.SenderName != "Ana" || !mc.IsControlGroup {
		t.Errorf("context = %+v", mc)
	}
	if mc.Attachment == nil || mc.Attachment.DocumentMessage.Mimetype != "application/pdf" {
		t.Fatalf("document = %+v, want first document", mc.Attachment)
	}
	if mc.Attachment.ImageMessage.Mimetype != "image/png" {
		t.Errorf("image = %+v", mc.Attachment.ImageMessage)
	}
	if got := routing.DetectReceipt(mc.Attachment); got != routing.ReceiptPDF {
		t.Errorf("DetectReceipt = %q, want pdf", got)
	}

	if FromInbound(bus.InboundMessage{Content: "oi"}, false).Attachment != nil {
		t.Error("text message should carry no attachment")
	}
}

type memLog struct {
	mu      sync.Mutex
	entries []store.MessageLogEntry
	err     error
}

func (m *memLog) Record(_ context.Context, e store.MessageLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLog) ListByGroup(context.Context, string, int) ([]store.MessageLogEntry, error) {
	return m.entries, nil
}

func TestObserveRecorder(t *testing.T) {
	log := &memLog{}
	r := NewObserveRecorder(log)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }

	res := result(routing.DestObserveOnly)
	res.Rule = routing.RuleGroupMode
	if err := r.Handle(context.Background(), res, bus.InboundMessage{}); err != nil {
		t.Fatal(err)
	}
	if len(log.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(log.entries))
	}
	e := log.entries[0]
	if e.Destination != "OBSERVE_ONLY" || e.Rule != routing.RuleGroupMode || !e.ReceivedAt.Equal(at) {
		t.Errorf("entry = %+v", e)
	}

	log.err = errors.New("disk full")
	if err := r.Handle(context.Background(), res, bus.InboundMessage{}); err == nil {
		t.Error("expected store error")
	}
}

type capturePub struct {
	events []bus.Event
}

func (c *capturePub) Subscribe(string, bus.EventHandler) {}
func (c *capturePub) Unsubscribe(string)                 {}
func (c *capturePub) Broadcast(e bus.Event)              { c.events = append(c.events, e) }

func TestEventForwarder(t *testing.T) {
	pub := &capturePub{}
	f := NewEventForwarder(pub)

	res := result(routing.DestDeal)
	res.Context.DealAction = routing.DealPriceLock
	res.Context.Amount = decimal.RequireFromString("15000")
	res.Context.HasAmount = true
	msg := bus.InboundMessage{Channel: "whatsapp", Metadata: map[string]string{"message_id": "M1"}}

	if err := f.Handle(context.Background(), res, msg); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 || pub.events[0].Name != protocol.EventMessageRouted {
		t.Fatalf("events = %+v", pub.events)
	}
	ev, ok := pub.events[0].Payload.(RoutedEvent)
	if !ok {
		t.Fatalf("payload type %T", pub.events[0].Payload)
	}
	if ev.MessageID != "M1" || ev.DealAction != routing.DealPriceLock || ev.Amount == nil || !ev.Amount.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("event = %+v", ev)
	}

	plain := NewRoutedEvent(result(routing.DestPrice), bus.InboundMessage{}, time.Now())
	if plain.Amount != nil {
		t.Error("amount should be omitted when not parsed")
	}
}
