package store

import (
	"context"
	"time"
)

// GroupMode is the operating mode of a chat group.
type GroupMode string

const (
	GroupModePaused   GroupMode = "paused"   // bot ignores the group entirely
	GroupModeLearning GroupMode = "learning" // observe and log only
	GroupModeAssisted GroupMode = "assisted" // observe and log only, operators reply
	GroupModeActive   GroupMode = "active"   // full automation
)

// Valid reports whether m is one of the known modes.
func (m GroupMode) Valid() bool {
	switch m {
	case GroupModePaused, GroupModeLearning, GroupModeAssisted, GroupModeActive:
		return true
	}
	return false
}

// DealFlowMode selects how deal conversations are driven in a group.
type DealFlowMode string

const (
	DealFlowClassic DealFlowMode = "classic" // trigger-driven
	DealFlowSimple  DealFlowMode = "simple"  // deal-state-driven
)

// Group is a chat group known to the desk.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mode      GroupMode `json:"mode"`
	IsControl bool      `json:"is_control"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupSettings holds per-group pricing configuration.
// Only DealFlowMode is consumed by routing; spreads belong to the price engine.
type GroupSettings struct {
	GroupID       string       `json:"group_id"`
	DealFlowMode  DealFlowMode `json:"deal_flow_mode"`
	SpreadBuyBps  int          `json:"spread_buy_bps"`
	SpreadSellBps int          `json:"spread_sell_bps"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// GroupStore manages chat group records.
type GroupStore interface {
	Get(ctx context.Context, id string) (*Group, error)
	List(ctx context.Context) ([]Group, error)
	// Ensure inserts the group with the given mode if it does not exist yet.
	// Existing rows only get their name refreshed.
	Ensure(ctx context.Context, id, name string, mode GroupMode) error
	SetMode(ctx context.Context, id string, mode GroupMode) error
}

// GroupSettingsStore reads and writes per-group pricing settings.
// Get returns ErrNotFound when the group has no settings row.
type GroupSettingsStore interface {
	Get(ctx context.Context, groupID string) (*GroupSettings, error)
	Upsert(ctx context.Context, s GroupSettings) error
}
