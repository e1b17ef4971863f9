package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// PGGroupStore implements store.GroupStore backed by Postgres.
type PGGroupStore struct {
	db *sql.DB
}

func NewPGGroupStore(db *sql.DB) *PGGroupStore {
	return &PGGroupStore{db: db}
}

const groupSelectCols = `id, name, mode, is_control, created_at, updated_at`

func (s *PGGroupStore) Get(ctx context.Context, id string) (*store.Group, error) {
	var g store.Group
	err := s.db.QueryRowContext(ctx,
		`SELECT `+groupSelectCols+` FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.Mode, &g.IsControl, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PGGroupStore) List(ctx context.Context) ([]store.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupSelectCols+` FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.Group
	for rows.Next() {
		var g store.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Mode, &g.IsControl, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *PGGroupStore) Ensure(ctx context.Context, id, name string, mode store.GroupMode) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, mode, is_control, created_at, updated_at)
		 VALUES ($1, $2, $3, false, $4, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE groups.name END,
		   updated_at = EXCLUDED.updated_at`,
		id, name, mode, now,
	)
	return err
}

func (s *PGGroupStore) SetMode(ctx context.Context, id string, mode store.GroupMode) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET mode = $1, updated_at = $2 WHERE id = $3`, mode, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// PGGroupSettingsStore implements store.GroupSettingsStore backed by Postgres.
type PGGroupSettingsStore struct {
	db *sql.DB
}

func NewPGGroupSettingsStore(db *sql.DB) *PGGroupSettingsStore {
	return &PGGroupSettingsStore{db: db}
}

func (s *PGGroupSettingsStore) Get(ctx context.Context, groupID string) (*store.GroupSettings, error) {
	var gs store.GroupSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id, deal_flow_mode, spread_buy_bps, spread_sell_bps, updated_at
		 FROM group_settings WHERE group_id = $1`, groupID,
	).Scan(&gs.GroupID, &gs.DealFlowMode, &gs.SpreadBuyBps, &gs.SpreadSellBps, &gs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gs, nil
}

func (s *PGGroupSettingsStore) Upsert(ctx context.Context, gs store.GroupSettings) error {
	if gs.DealFlowMode == "" {
		gs.DealFlowMode = store.DealFlowClassic
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_settings (group_id, deal_flow_mode, spread_buy_bps, spread_sell_bps, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (group_id) DO UPDATE SET
		   deal_flow_mode = EXCLUDED.deal_flow_mode,
		   spread_buy_bps = EXCLUDED.spread_buy_bps,
		   spread_sell_bps = EXCLUDED.spread_sell_bps,
		   updated_at = EXCLUDED.updated_at`,
		gs.GroupID, gs.DealFlowMode, gs.SpreadBuyBps, gs.SpreadSellBps, time.Now(),
	)
	return err
}
