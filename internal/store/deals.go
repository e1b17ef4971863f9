package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealState is the position of a deal in the negotiation flow.
type DealState string

const (
	DealQuoted               DealState = "quoted"
	DealAwaitingAmount       DealState = "awaiting_amount"
	DealLocked               DealState = "locked"
	DealAwaitingConfirmation DealState = "awaiting_confirmation"
	DealCompleted            DealState = "completed"
	DealCancelled            DealState = "cancelled"
	DealExpired              DealState = "expired"
)

// IsTerminal reports whether the deal no longer counts as active.
func (s DealState) IsTerminal() bool {
	return s == DealCompleted || s == DealCancelled || s == DealExpired
}

// Deal is a stateful negotiation between the desk and one client in one group.
// At most one non-terminal deal exists per (GroupID, ClientID).
type Deal struct {
	ID          uuid.UUID       `json:"id"`
	GroupID     string          `json:"group_id"`
	ClientID    string          `json:"client_id"`
	State       DealState       `json:"state"`
	QuotedPrice decimal.Decimal `json:"quoted_price"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DealStore reads and writes deals.
type DealStore interface {
	// GetActive returns the sender's single non-terminal deal, or nil when none exists.
	GetActive(ctx context.Context, groupID, clientID string) (*Deal, error)
	Upsert(ctx context.Context, d *Deal) error
}
