package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// DealStore implements store.DealStore on SQLite.
type DealStore struct {
	db *sql.DB
}

func (s *DealStore) GetActive(ctx context.Context, groupID, clientID string) (*store.Deal, error) {
	var d store.Deal
	var id, price, amount string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, client_id, state, quoted_price, amount, created_at, updated_at
		 FROM deals
		 WHERE group_id = ? AND client_id = ?
		   AND state NOT IN ('completed', 'cancelled', 'expired')
		 ORDER BY updated_at DESC
		 LIMIT 1`, groupID, clientID,
	).Scan(&id, &d.GroupID, &d.ClientID, &d.State, &price, &amount, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if d.QuotedPrice, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DealStore) Upsert(ctx context.Context, d *store.Deal) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.Must(uuid.NewV7())
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deals (id, group_id, client_id, state, quoted_price, amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   state = excluded.state,
		   quoted_price = excluded.quoted_price,
		   amount = excluded.amount,
		   updated_at = excluded.updated_at`,
		d.ID.String(), d.GroupID, d.ClientID, string(d.State),
		d.QuotedPrice.String(), d.Amount.String(), d.CreatedAt, d.UpdatedAt,
	)
	return err
}
