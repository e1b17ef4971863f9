package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PatternStore reads operator-edited keyword lists keyed by semantic pattern
// (e.g. "price_lock", "deal_cancellation").
type PatternStore interface {
	ListPatterns(ctx context.Context) (map[string][]string, error)
	SetPattern(ctx context.Context, key string, keywords []string) error
}

// MessageLogEntry is a message kept for later review or reprocessing.
type MessageLogEntry struct {
	ID          uuid.UUID `json:"id"`
	GroupID     string    `json:"group_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name,omitempty"`
	Text        string    `json:"text"`
	Destination string    `json:"destination"`
	Rule        string    `json:"rule"`
	ReceivedAt  time.Time `json:"received_at"`
}

// MessageLogStore persists observed messages.
type MessageLogStore interface {
	Record(ctx context.Context, e MessageLogEntry) error
	ListByGroup(ctx context.Context, groupID string, limit int) ([]MessageLogEntry, error)
}
