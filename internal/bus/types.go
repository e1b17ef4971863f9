package bus

import "context"

// InboundMessage represents a message received from a chat channel.
type InboundMessage struct {
	Channel     string            `json:"channel"`
	SenderID    string            `json:"sender_id"`
	SenderName  string            `json:"sender_name,omitempty"`
	ChatID      string            `json:"chat_id"`
	ChatName    string            `json:"chat_name,omitempty"`
	Content     string            `json:"content"`
	PeerKind    string            `json:"peer_kind,omitempty"` // "direct" or "group"
	Attachments []MediaAttachment `json:"attachments,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Attachment kinds as declared by the bridge.
const (
	AttachmentDocument = "document"
	AttachmentImage    = "image"
)

// MediaAttachment is the declared metadata of an attachment. The gateway
// never downloads media; receipt handlers fetch it themselves.
type MediaAttachment struct {
	Kind        string `json:"kind"`                   // AttachmentDocument or AttachmentImage
	ContentType string `json:"content_type,omitempty"` // MIME type as declared by the sender
	FileName    string `json:"file_name,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// Event represents a server-side event to broadcast to WebSocket clients.
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// Cache invalidation kind constants.
const (
	CacheKindTriggers = "triggers"
	CacheKindGroups   = "groups"
	CacheKindKeywords = "keywords"
)

// CacheInvalidatePayload signals cache layers to evict stale entries.
// Used with protocol.EventCacheInvalidate events.
type CacheInvalidatePayload struct {
	Kind string `json:"kind"` // CacheKind* constants
	Key  string `json:"key"`  // group id; empty invalidates all
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageRouter abstracts inbound/outbound message flow between channels and the gateway.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
