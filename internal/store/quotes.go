package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteStatus is the lifecycle position of an active quote.
type QuoteStatus string

const (
	QuotePending   QuoteStatus = "pending"
	QuoteRepricing QuoteStatus = "repricing"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteExpired   QuoteStatus = "expired"
)

// Quote is a time-bounded price offer outstanding for a group.
type Quote struct {
	ID           uuid.UUID       `json:"id"`
	GroupID      string          `json:"group_id"`
	RequesterID  string          `json:"requester_id"`
	QuotedPrice  decimal.Decimal `json:"quoted_price"`
	BasePrice    decimal.Decimal `json:"base_price"`
	Status       QuoteStatus     `json:"status"`
	QuotedAt     time.Time       `json:"quoted_at"`
	RepriceCount int             `json:"reprice_count"`
	PriceSource  string          `json:"price_source"`
}

// IsOpen reports whether the quote may still be acted upon by its requester.
// Only pending and repricing quotes are open.
func (q *Quote) IsOpen() bool {
	return q != nil && (q.Status == QuotePending || q.Status == QuoteRepricing)
}
