package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// PGDealStore implements store.DealStore backed by Postgres.
// The partial unique index deals_active_client_idx enforces one active deal
// per (group, client).
type PGDealStore struct {
	db *sql.DB
}

func NewPGDealStore(db *sql.DB) *PGDealStore {
	return &PGDealStore{db: db}
}

func (s *PGDealStore) GetActive(ctx context.Context, groupID, clientID string) (*store.Deal, error) {
	var d store.Deal
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, client_id, state, quoted_price, amount, created_at, updated_at
		 FROM deals
		 WHERE group_id = $1 AND client_id = $2
		   AND state NOT IN ('completed', 'cancelled', 'expired')
		 ORDER BY updated_at DESC
		 LIMIT 1`, groupID, clientID,
	).Scan(&d.ID, &d.GroupID, &d.ClientID, &d.State, &d.QuotedPrice, &d.Amount, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PGDealStore) Upsert(ctx context.Context, d *store.Deal) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.Must(uuid.NewV7())
	}
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deals (id, group_id, client_id, state, quoted_price, amount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   state = EXCLUDED.state,
		   quoted_price = EXCLUDED.quoted_price,
		   amount = EXCLUDED.amount,
		   updated_at = EXCLUDED.updated_at`,
		d.ID, d.GroupID, d.ClientID, d.State, d.QuotedPrice, d.Amount, d.CreatedAt, d.UpdatedAt,
	)
	return err
}
