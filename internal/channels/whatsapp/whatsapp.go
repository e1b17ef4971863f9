// Package whatsapp connects the gateway to a WhatsApp bridge over WebSocket.
// The bridge (e.g. whatsapp-web.js or Baileys based) handles the actual
// WhatsApp protocol; this channel just sends/receives JSON frames.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/channels"
	"github.com/nextlevelbuilder/otcdesk/internal/config"
)

const (
	channelName  = "whatsapp"
	groupSuffix  = "@g.us"
	rateBurst    = 10
	maxBackoff   = 30 * time.Second
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// Channel connects to a WhatsApp bridge via WebSocket.
type Channel struct {
	*channels.BaseChannel
	conn      *websocket.Conn
	config    config.WhatsAppConfig
	mu        sync.Mutex
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new WhatsApp channel from config.
func New(cfg config.WhatsAppConfig, msgBus bus.MessageRouter) (*Channel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}

	base := channels.NewBaseChannel(channelName, msgBus, cfg.AllowFrom)
	if l := channels.NewSenderRateLimiter(cfg.RateLimitRPM, rateBurst); l != nil {
		base.SetRateLimiter(l)
	}

	return &Channel{
		BaseChannel: base,
		config:      cfg,
	}, nil
}

// Start connects to the WhatsApp bridge WebSocket and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.config.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// Don't fail hard, the listen loop keeps retrying.
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop gracefully shuts down the WhatsApp channel.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.SetRunning(false)

	return nil
}

// Connected reports whether the bridge socket is currently up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send delivers an outbound message to the WhatsApp bridge.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	data, err := json.Marshal(outboundFrame{Type: "message", To: msg.ChatID, Content: msg.Content})
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

// connect establishes the WebSocket connection to the bridge.
func (c *Channel) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = dialTimeout

	conn, _, err := dialer.Dial(c.config.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.config.BridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", c.config.BridgeURL)
	return nil
}

// listenLoop reads messages from the bridge with automatic reconnection.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, maxBackoff)
				continue
			}

			backoff = time.Second
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)

			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connected = false
			c.mu.Unlock()

			continue
		}

		c.handleFrame(data)
	}
}

// handleFrame decodes one bridge frame and publishes it if accepted.
func (c *Channel) handleFrame(data []byte) {
	msg, ok, err := parseInbound(data)
	if err != nil {
		slog.Warn("invalid whatsapp message JSON", "error", err)
		return
	}
	if !ok {
		return
	}

	if msg.PeerKind != channels.PeerGroup {
		slog.Debug("whatsapp direct message ignored", "sender_id", msg.SenderID)
		return
	}
	if !c.config.IsControlGroup(msg.ChatID) &&
		!channels.CheckGroupPolicy(c.config.GroupPolicy, c.config.AllowGroups, msg.ChatID) {
		slog.Debug("whatsapp group message rejected by policy", "chat_id", msg.ChatID)
		return
	}

	slog.Debug("whatsapp message received",
		"sender_id", msg.SenderID,
		"chat_id", msg.ChatID,
		"attachments", len(msg.Attachments),
		"preview", channels.Truncate(msg.Content, 50),
	)

	c.HandleMessage(msg)
}

type outboundFrame struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Content string `json:"content"`
}

// inboundFrame is the bridge's message event.
// Expected format: {"type":"message","from":"...","chat":"...","content":"...",
// "id":"...","from_name":"...","chat_name":"...","timestamp":0,
// "message":{"documentMessage":{...},"imageMessage":{...}}}
type inboundFrame struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	Chat      string `json:"chat"`
	Content   string `json:"content"`
	ID        string `json:"id"`
	FromName  string `json:"from_name"`
	ChatName  string `json:"chat_name"`
	Timestamp int64  `json:"timestamp"`
	Message   *struct {
		DocumentMessage *mediaFrame `json:"documentMessage"`
		ImageMessage    *mediaFrame `json:"imageMessage"`
	} `json:"message"`
}

type mediaFrame struct {
	Mimetype string `json:"mimetype"`
	FileName string `json:"fileName"`
	Caption  string `json:"caption"`
}

// parseInbound converts a bridge frame into an InboundMessage. ok is false
// for frames that are not messages or carry no sender.
func parseInbound(data []byte) (bus.InboundMessage, bool, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return bus.InboundMessage{}, false, err
	}
	if f.Type != "message" || f.From == "" {
		return bus.InboundMessage{}, false, nil
	}

	chatID := f.Chat
	if chatID == "" {
		chatID = f.From
	}
	peerKind := channels.PeerDirect
	if strings.HasSuffix(chatID, groupSuffix) {
		peerKind = channels.PeerGroup
	}

	msg := bus.InboundMessage{
		Channel:    channelName,
		SenderID:   f.From,
		SenderName: f.FromName,
		ChatID:     chatID,
		ChatName:   f.ChatName,
		Content:    f.Content,
		PeerKind:   peerKind,
		Metadata:   make(map[string]string),
	}
	if f.ID != "" {
		msg.Metadata["message_id"] = f.ID
	}
	if f.Timestamp > 0 {
		msg.Metadata["timestamp"] = fmt.Sprint(f.Timestamp)
	}

	if f.Message != nil {
		if d := f.Message.DocumentMessage; d != nil {
			msg.Attachments = append(msg.Attachments, d.attachment(bus.AttachmentDocument))
		}
		if i := f.Message.ImageMessage; i != nil {
			msg.Attachments = append(msg.Attachments, i.attachment(bus.AttachmentImage))
		}
	}

	// Captions stand in for text on media-only messages.
	if msg.Content == "" {
		for _, a := range msg.Attachments {
			if a.Caption != "" {
				msg.Content = a.Caption
				break
			}
		}
	}

	return msg, true, nil
}

func (m *mediaFrame) attachment(kind string) bus.MediaAttachment {
	return bus.MediaAttachment{
		Kind:        kind,
		ContentType: m.Mimetype,
		FileName:    m.FileName,
		Caption:     m.Caption,
	}
}
