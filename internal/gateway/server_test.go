package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/config"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

func startServer(t *testing.T, token string) (*Server, *bus.MessageBus, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Gateway.Token = token
	b := bus.New()
	s := NewServer(cfg, b)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	addr, start := StartTestServer(s, ctx)
	go start()
	return s, b, addr
}

func dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, _, err = websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
		if err == nil {
			t.Cleanup(func() { conn.Close() })
			return conn
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("dial: %v", err)
	return nil
}

func call(t *testing.T, conn *websocket.Conn, id, method string, params interface{}) protocol.ResponseFrame {
	t.Helper()
	raw, _ := json.Marshal(params)
	if err := conn.WriteJSON(protocol.RequestFrame{Type: protocol.FrameTypeRequest, ID: id, Method: method, Params: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if ft, _ := protocol.ParseFrameType(data); ft != protocol.FrameTypeResponse {
			continue
		}
		var res protocol.ResponseFrame
		json.Unmarshal(data, &res)
		if res.ID == id {
			return res
		}
	}
}

func TestGatewayAuth(t *testing.T) {
	_, _, addr := startServer(t, "tok")
	conn := dial(t, addr)

	if res := call(t, conn, "1", protocol.MethodHealth, nil); !res.OK {
		t.Errorf("health before connect = %+v, want ok", res)
	}
	if res := call(t, conn, "2", protocol.MethodStatus, nil); res.OK || res.Error.Code != protocol.ErrUnauthorized {
		t.Errorf("status before connect = %+v, want unauthorized", res)
	}
	if res := call(t, conn, "3", protocol.MethodConnect, map[string]string{"token": "bad"}); res.OK {
		t.Error("connect with bad token succeeded")
	}
	if res := call(t, conn, "4", protocol.MethodConnect, map[string]string{"token": "tok"}); !res.OK {
		t.Fatalf("connect = %+v", res)
	}
	if res := call(t, conn, "5", protocol.MethodStatus, nil); !res.OK {
		t.Errorf("status after connect = %+v", res)
	}
	if res := call(t, conn, "6", "nope", nil); res.OK || res.Error.Code != protocol.ErrMethodNotFound {
		t.Errorf("unknown method = %+v", res)
	}
}

func TestGatewayForwardsEvents(t *testing.T) {
	s, b, addr := startServer(t, "")
	conn := dial(t, addr)
	call(t, conn, "1", protocol.MethodConnect, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.RLock()
		n := len(s.clients)
		s.mu.RUnlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.Broadcast(bus.Event{Name: protocol.EventCacheInvalidate, Payload: bus.CacheInvalidatePayload{Kind: "triggers"}})
	b.Broadcast(bus.Event{Name: protocol.EventMessageRouted, Payload: map[string]string{"destination": "PRICE"}})

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var ev protocol.EventFrame
	json.Unmarshal(data, &ev)
	if ev.Event != protocol.EventMessageRouted {
		t.Errorf("first event = %q, want %q (cache events stay internal)", ev.Event, protocol.EventMessageRouted)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, _, addr := startServer(t, "")
	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("health = %v", body)
	}
}

func TestCheckOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.Gateway.AllowedOrigins = []string{"https://desk.example.com"}
	s := NewServer(cfg, bus.New())
	tests := map[string]bool{
		"":                          true,
		"https://desk.example.com":  true,
		"https://evil.example.com":  false,
	}
	for origin, want := range tests {
		req, _ := http.NewRequest("GET", "/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := s.checkOrigin(req); got != want {
			t.Errorf("checkOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}
