// Package quotes keeps the single outstanding price quote of each group.
package quotes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// DefaultTTL is how long an open quote stays actionable.
const DefaultTTL = 3 * time.Minute

var (
	ErrNoQuote  = errors.New("no active quote")
	ErrNotOpen  = errors.New("quote is not open")
	ErrBadPrice = errors.New("price must be positive")
)

// OpenRequest describes a new quote.
type OpenRequest struct {
	GroupID     string          `json:"group_id"`
	RequesterID string          `json:"requester_id"`
	QuotedPrice decimal.Decimal `json:"quoted_price"`
	BasePrice   decimal.Decimal `json:"base_price"`
	PriceSource string          `json:"price_source"`
}

// Book implements routing.QuoteBook. Quotes expire lazily on read and are
// dropped by Sweep.
type Book struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	notify func(store.Quote)

	mu     sync.RWMutex
	quotes map[string]*store.Quote
}

// NewBook creates an empty book. ttl <= 0 uses DefaultTTL.
func NewBook(ttl time.Duration, logger *slog.Logger) *Book {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		quotes: make(map[string]*store.Quote),
	}
}

// SetNotifier registers fn to receive a copy of every quote after it is
// opened or changes status. fn runs outside the book's lock.
func (b *Book) SetNotifier(fn func(store.Quote)) { b.notify = fn }

func (b *Book) changed(q store.Quote) {
	if b.notify != nil {
		b.notify(q)
	}
}

// Open replaces any quote of the group with a new pending one.
func (b *Book) Open(req OpenRequest) (*store.Quote, error) {
	if !req.QuotedPrice.IsPositive() {
		return nil, ErrBadPrice
	}
	base := req.BasePrice
	if base.IsZero() {
		base = req.QuotedPrice
	}
	q := &store.Quote{
		ID:          uuid.Must(uuid.NewV7()),
		GroupID:     req.GroupID,
		RequesterID: req.RequesterID,
		QuotedPrice: req.QuotedPrice,
		BasePrice:   base,
		Status:      store.QuotePending,
		QuotedAt:    b.now(),
		PriceSource: req.PriceSource,
	}

	b.mu.Lock()
	b.quotes[req.GroupID] = q
	b.mu.Unlock()

	b.logger.Info("quotes.opened", "group_id", q.GroupID, "requester_id", q.RequesterID,
		"quote_id", q.ID, "price", q.QuotedPrice.String())
	cp := *q
	b.changed(cp)
	return &cp, nil
}

// Active returns a copy of the group's quote, or nil. A quote past its TTL
// is reported as expired.
func (b *Book) Active(groupID string) *store.Quote {
	b.mu.RLock()
	q, ok := b.quotes[groupID]
	if !ok {
		b.mu.RUnlock()
		return nil
	}
	cp := *q
	b.mu.RUnlock()

	if cp.IsOpen() && b.expired(&cp) {
		cp.Status = store.QuoteExpired
	}
	return &cp
}

// ForceAccept marks the group's open quote accepted, even while repricing.
func (b *Book) ForceAccept(groupID string) {
	b.mu.Lock()
	q, ok := b.quotes[groupID]
	if !ok || !q.IsOpen() || b.expired(q) {
		b.mu.Unlock()
		return
	}
	q.Status = store.QuoteAccepted
	cp := *q
	b.mu.Unlock()
	b.changed(cp)
}

// Accept is ForceAccept with an error for absent or closed quotes.
func (b *Book) Accept(groupID string) (*store.Quote, error) {
	return b.transition(groupID, func(q *store.Quote) error {
		q.Status = store.QuoteAccepted
		return nil
	})
}

// BeginReprice flags the open quote as being repriced.
func (b *Book) BeginReprice(groupID string) (*store.Quote, error) {
	return b.transition(groupID, func(q *store.Quote) error {
		q.Status = store.QuoteRepricing
		return nil
	})
}

// Reprice sets a new price on the open quote, returns it to pending and
// restarts its TTL.
func (b *Book) Reprice(groupID string, price decimal.Decimal) (*store.Quote, error) {
	if !price.IsPositive() {
		return nil, ErrBadPrice
	}
	return b.transition(groupID, func(q *store.Quote) error {
		q.QuotedPrice = price
		q.Status = store.QuotePending
		q.RepriceCount++
		q.QuotedAt = b.now()
		return nil
	})
}

// Expire marks the group's quote expired regardless of its age.
func (b *Book) Expire(groupID string) (*store.Quote, error) {
	return b.transition(groupID, func(q *store.Quote) error {
		q.Status = store.QuoteExpired
		return nil
	})
}

// Clear drops the group's quote.
func (b *Book) Clear(groupID string) {
	b.mu.Lock()
	delete(b.quotes, groupID)
	b.mu.Unlock()
}

// Sweep drops closed quotes and open quotes past their TTL.
// It returns the number of quotes removed.
func (b *Book) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for groupID, q := range b.quotes {
		if !q.IsOpen() || b.expired(q) {
			delete(b.quotes, groupID)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (b *Book) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.Sweep(); n > 0 {
				b.logger.Debug("quotes.swept", "removed", n)
			}
		}
	}
}

func (b *Book) transition(groupID string, apply func(q *store.Quote) error) (*store.Quote, error) {
	cp, err := b.transitionLocked(groupID, apply)
	if err != nil {
		return nil, err
	}
	b.changed(cp)
	return &cp, nil
}

func (b *Book) transitionLocked(groupID string, apply func(q *store.Quote) error) (store.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quotes[groupID]
	if !ok {
		return store.Quote{}, ErrNoQuote
	}
	if !q.IsOpen() || b.expired(q) {
		return store.Quote{}, ErrNotOpen
	}
	if err := apply(q); err != nil {
		return store.Quote{}, err
	}
	return *q, nil
}

func (b *Book) expired(q *store.Quote) bool {
	return b.now().Sub(q.QuotedAt) > b.ttl
}
