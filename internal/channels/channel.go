// Package channels provides the channel abstraction between chat platforms
// and the gateway. Channels publish inbound group messages to the message bus
// and deliver outbound messages published by downstream workers.
package channels

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
)

// GroupPolicy controls how group messages are handled.
type GroupPolicy string

const (
	GroupPolicyOpen      GroupPolicy = "open"      // Accept all groups
	GroupPolicyAllowlist GroupPolicy = "allowlist" // Only whitelisted groups
	GroupPolicyDisabled  GroupPolicy = "disabled"  // No group messages
)

// Peer kinds carried on bus.InboundMessage.
const (
	PeerDirect = "direct"
	PeerGroup  = "group"
)

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "whatsapp").
	Name() string

	// Start begins listening for messages. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool

	// IsAllowed checks if a sender is permitted by the channel's allowlist.
	IsAllowed(senderID string) bool
}

// BaseChannel provides shared functionality for all channel implementations.
// Channel implementations should embed this struct.
type BaseChannel struct {
	name      string
	bus       bus.MessageRouter
	running   atomic.Bool
	allowList []string
	limiter   *SenderRateLimiter
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, msgBus bus.MessageRouter, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		allowList: allowList,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// SetRateLimiter installs a per-sender limiter applied in HandleMessage.
func (c *BaseChannel) SetRateLimiter(l *SenderRateLimiter) { c.limiter = l }

// HasAllowList returns true if an allowlist is configured (non-empty).
func (c *BaseChannel) HasAllowList() bool { return len(c.allowList) > 0 }

// IsAllowed checks if a sender is permitted by the allowlist.
// WhatsApp JIDs match on the full id or on the phone number before "@".
// Empty allowlist means all senders are allowed.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	idPart := senderID
	if idx := strings.IndexByte(senderID, '@'); idx > 0 {
		idPart = senderID[:idx]
	}
	for _, allowed := range c.allowList {
		allowed = strings.TrimPrefix(allowed, "+")
		if senderID == allowed || idPart == allowed {
			return true
		}
	}
	return false
}

// CheckGroupPolicy evaluates the group policy for a chat.
// allowGroups is consulted only under the allowlist policy.
func CheckGroupPolicy(policy string, allowGroups []string, chatID string) bool {
	switch GroupPolicy(policy) {
	case GroupPolicyDisabled:
		return false
	case GroupPolicyAllowlist:
		for _, g := range allowGroups {
			if g == chatID {
				return true
			}
		}
		return false
	default: // "open"
		return true
	}
}

// HandleMessage publishes msg to the bus after the allowlist and rate limit
// checks. The channel name is filled in.
func (c *BaseChannel) HandleMessage(msg bus.InboundMessage) bool {
	if !c.IsAllowed(msg.SenderID) {
		slog.Debug("channel: sender rejected by allowlist", "channel", c.name, "sender_id", msg.SenderID)
		return false
	}
	if c.limiter != nil && !c.limiter.Allow(msg.SenderID) {
		slog.Warn("security.rate_limited", "channel", c.name, "sender_id", msg.SenderID, "chat_id", msg.ChatID)
		return false
	}
	msg.Channel = c.name
	c.bus.PublishInbound(msg)
	return true
}

// Truncate shortens a string to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
