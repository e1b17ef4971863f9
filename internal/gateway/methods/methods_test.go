package methods

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/channels"
	"github.com/nextlevelbuilder/otcdesk/internal/config"
	"github.com/nextlevelbuilder/otcdesk/internal/gateway"
	"github.com/nextlevelbuilder/otcdesk/internal/invalidate"
	"github.com/nextlevelbuilder/otcdesk/internal/quotes"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

type rpcClient struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

func startGateway(t *testing.T, register func(r *gateway.MethodRouter)) *rpcClient {
	t.Helper()
	s := gateway.NewServer(config.Default(), bus.New())
	register(s.Router())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	addr, start := gateway.StartTestServer(s, ctx)
	go start()

	var conn *websocket.Conn
	var err error
	for i := 0; i < 50; i++ {
		if conn, _, err = websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &rpcClient{t: t, conn: conn}
}

func (c *rpcClient) call(method string, params interface{}) (map[string]interface{}, *protocol.ErrorShape) {
	c.t.Helper()
	c.seq++
	id := strconv.Itoa(c.seq)
	raw, _ := json.Marshal(params)
	if err := c.conn.WriteJSON(protocol.RequestFrame{Type: protocol.FrameTypeRequest, ID: id, Method: method, Params: raw}); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("read: %v", err)
		}
		var res struct {
			Type    string                 `json:"type"`
			ID      string                 `json:"id"`
			OK      bool                   `json:"ok"`
			Payload map[string]interface{} `json:"payload"`
			Error   *protocol.ErrorShape   `json:"error"`
		}
		if json.Unmarshal(data, &res) != nil || res.Type != protocol.FrameTypeResponse || res.ID != id {
			continue
		}
		return res.Payload, res.Error
	}
}

func TestQuotesMethodsLifecycle(t *testing.T) {
	book := quotes.NewBook(time.Minute, nil)
	c := startGateway(t, NewQuotesMethods(book).Register)

	if _, e := c.call(protocol.MethodQuotesGet, map[string]string{"group_id": "g1"}); e == nil || e.Code != protocol.ErrNotFound {
		t.Fatalf("get before open = %+v, want NOT_FOUND", e)
	}
	if _, e := c.call(protocol.MethodQuotesOpen, map[string]string{"group_id": "g1"}); e == nil || e.Code != protocol.ErrInvalidRequest {
		t.Fatalf("open without requester = %+v, want INVALID_REQUEST", e)
	}

	q, e := c.call(protocol.MethodQuotesOpen, map[string]string{"group_id": "g1", "requester_id": "c1", "quoted_price": "5.42"})
	if e != nil {
		t.Fatalf("open: %+v", e)
	}
	if q["status"] != "pending" {
		t.Errorf("open status = %v, want pending", q["status"])
	}

	if q, e = c.call(protocol.MethodQuotesReprice, map[string]string{"group_id": "g1"}); e != nil || q["status"] != "repricing" {
		t.Errorf("begin reprice = %v %+v, want repricing", q, e)
	}
	if q, e = c.call(protocol.MethodQuotesReprice, map[string]string{"group_id": "g1", "price": "5.40"}); e != nil || q["status"] != "pending" {
		t.Errorf("reprice = %v %+v, want pending", q, e)
	}
	if q, e = c.call(protocol.MethodQuotesAccept, map[string]string{"group_id": "g1"}); e != nil || q["status"] != "accepted" {
		t.Errorf("accept = %v %+v, want accepted", q, e)
	}
	if _, e = c.call(protocol.MethodQuotesAccept, map[string]string{"group_id": "g1"}); e == nil {
		t.Error("second accept succeeded, want error")
	}
}

func TestRoutingMethodsRules(t *testing.T) {
	r := routing.NewPreview(routing.Deps{})
	c := startGateway(t, NewRoutingMethods(r, nil).Register)

	p, e := c.call(protocol.MethodRouteRules, nil)
	if e != nil {
		t.Fatal(e)
	}
	rules, _ := p["rules"].([]interface{})
	if len(rules) != len(r.Rules()) || rules[0] != routing.RuleControlGroup {
		t.Errorf("rules = %v, want %v", rules, r.Rules())
	}

	if _, e := c.call(protocol.MethodRoutePreview, map[string]string{"text": "oi"}); e == nil || e.Code != protocol.ErrInvalidRequest {
		t.Errorf("preview without group = %+v, want INVALID_REQUEST", e)
	}
}

func TestAdminMethodsInvalidate(t *testing.T) {
	reg := invalidate.NewRegistry(nil)
	var mu sync.Mutex
	var got []string
	reg.Register(bus.CacheKindTriggers, func(_ context.Context, key string) error {
		mu.Lock()
		got = append(got, key)
		mu.Unlock()
		return nil
	})
	inv := invalidate.NewInvalidator(reg, nil, nil)
	c := startGateway(t, NewAdminMethods(nil, nil, inv).Register)

	if _, e := c.call(protocol.MethodCacheInvalidate, map[string]string{"kind": "triggers", "key": "g1"}); e != nil {
		t.Fatalf("invalidate: %+v", e)
	}
	if _, e := c.call(protocol.MethodCacheInvalidate, map[string]string{"kind": "nope"}); e == nil {
		t.Error("unknown kind accepted")
	}
	if _, e := c.call(protocol.MethodGroupsList, nil); e == nil || e.Code != protocol.ErrMethodNotFound {
		t.Errorf("groups.list without a directory = %+v, want METHOD_NOT_FOUND", e)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "g1" {
		t.Errorf("invalidated keys = %v, want [g1]", got)
	}
}

type capturingChannel struct {
	sent chan bus.OutboundMessage
}

func (c *capturingChannel) Name() string                { return "whatsapp" }
func (c *capturingChannel) Start(context.Context) error { return nil }
func (c *capturingChannel) Stop(context.Context) error  { return nil }
func (c *capturingChannel) IsRunning() bool             { return true }
func (c *capturingChannel) IsAllowed(string) bool       { return true }
func (c *capturingChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.sent <- msg
	return nil
}

func TestAdminMethodsSendQueuesOutbound(t *testing.T) {
	mgr := channels.NewManager(bus.New())
	ch := &capturingChannel{sent: make(chan bus.OutboundMessage, 1)}
	mgr.RegisterChannel("whatsapp", ch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.StartAll(ctx); err != nil {
		t.Fatal(err)
	}
	defer mgr.StopAll(context.Background())

	c := startGateway(t, NewAdminMethods(nil, mgr, nil).Register)

	if _, e := c.call(protocol.MethodSend, map[string]string{"chat_id": "g1@g.us"}); e == nil || e.Code != protocol.ErrInvalidRequest {
		t.Errorf("send without content = %+v, want INVALID_REQUEST", e)
	}
	if _, e := c.call(protocol.MethodSend, map[string]string{"channel": "telegram", "chat_id": "g1@g.us", "content": "x"}); e == nil {
		t.Error("send to an unregistered channel succeeded")
	}

	p, e := c.call(protocol.MethodSend, map[string]string{"chat_id": "g1@g.us", "content": "cotação: 5,42"})
	if e != nil {
		t.Fatalf("send: %+v", e)
	}
	if p["status"] != "queued" {
		t.Errorf("status = %v, want queued", p["status"])
	}
	select {
	case msg := <-ch.sent:
		if msg.ChatID != "g1@g.us" || msg.Content != "cotação: 5,42" {
			t.Errorf("delivered %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached the channel")
	}
}
