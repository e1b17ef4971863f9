package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionType is what a trigger does when it fires.
type ActionType string

const (
	ActionPriceQuote      ActionType = "price_quote"
	ActionVolumeQuote     ActionType = "volume_quote"
	ActionTextResponse    ActionType = "text_response"
	ActionAIPrompt        ActionType = "ai_prompt"
	ActionDealLock        ActionType = "deal_lock"
	ActionDealCancel      ActionType = "deal_cancel"
	ActionDealConfirm     ActionType = "deal_confirm"
	ActionDealVolume      ActionType = "deal_volume"
	ActionTronscanProcess ActionType = "tronscan_process"
	ActionReceiptProcess  ActionType = "receipt_process"
	ActionControlCommand  ActionType = "control_command"
)

// PatternType controls how a trigger phrase is compared with message text.
type PatternType string

const (
	PatternExact      PatternType = "exact"
	PatternContains   PatternType = "contains"
	PatternStartsWith PatternType = "starts_with"
	PatternRegex      PatternType = "regex"
)

// TriggerScope distinguishes built-in triggers from operator-defined ones.
type TriggerScope string

const (
	TriggerScopeSystem TriggerScope = "system"
	TriggerScopeUser   TriggerScope = "user"
)

// Trigger is a configured (phrase, action) rule a message can match.
type Trigger struct {
	ID           uuid.UUID       `json:"id"`
	GroupID      string          `json:"group_id,omitempty"` // empty for system triggers
	Phrase       string          `json:"phrase"`
	PatternType  PatternType     `json:"pattern_type"`
	ActionType   ActionType      `json:"action_type"`
	ActionParams json.RawMessage `json:"action_params,omitempty"`
	Priority     int             `json:"priority"` // lower fires first
	IsActive     bool            `json:"is_active"`
	Scope        TriggerScope    `json:"scope"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TriggerStore reads trigger definitions.
type TriggerStore interface {
	// ListForGroup returns the active triggers owned by groupID plus all
	// active system triggers. Ordering is left to the matcher.
	ListForGroup(ctx context.Context, groupID string) ([]Trigger, error)
	Upsert(ctx context.Context, t *Trigger) error
}
