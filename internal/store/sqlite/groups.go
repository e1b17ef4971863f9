package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// GroupStore implements store.GroupStore on SQLite.
type GroupStore struct {
	db *sql.DB
}

func (s *GroupStore) Get(ctx context.Context, id string) (*store.Group, error) {
	var g store.Group
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, mode, is_control, created_at, updated_at FROM groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.Mode, &g.IsControl, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) List(ctx context.Context) ([]store.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, mode, is_control, created_at, updated_at FROM groups ORDER BY name`)
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

func (s *GroupStore) Ensure(ctx context.Context, id, name string, mode store.GroupMode) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, mode, is_control, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE groups.name END,
		   updated_at = excluded.updated_at`,
		id, name, string(mode), now, now,
	)
	return err
}

func (s *GroupStore) SetMode(ctx context.Context, id string, mode store.GroupMode) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET mode = ?, updated_at = ? WHERE id = ?`, string(mode), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetControl flags a group as a control group. Standalone deployments have no
// admin dashboard, so the seed command uses this directly.
func (s *GroupStore) SetControl(ctx context.Context, id string, isControl bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE groups SET is_control = ?, updated_at = ? WHERE id = ?`, isControl, time.Now().UTC(), id)
	return err
}

// GroupSettingsStore implements store.GroupSettingsStore on SQLite.
type GroupSettingsStore struct {
	db *sql.DB
}

func (s *GroupSettingsStore) Get(ctx context.Context, groupID string) (*store.GroupSettings, error) {
	var gs store.GroupSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id, deal_flow_mode, spread_buy_bps, spread_sell_bps, updated_at
		 FROM group_settings WHERE group_id = ?`, groupID,
	).Scan(&gs.GroupID, &gs.DealFlowMode, &gs.SpreadBuyBps, &gs.SpreadSellBps, &gs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gs, nil
}

func (s *GroupSettingsStore) Upsert(ctx context.Context, gs store.GroupSettings) error {
	if gs.DealFlowMode == "" {
		gs.DealFlowMode = store.DealFlowClassic
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_settings (group_id, deal_flow_mode, spread_buy_bps, spread_sell_bps, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (group_id) DO UPDATE SET
		   deal_flow_mode = excluded.deal_flow_mode,
		   spread_buy_bps = excluded.spread_buy_bps,
		   spread_sell_bps = excluded.spread_sell_bps,
		   updated_at = excluded.updated_at`,
		gs.GroupID, string(gs.DealFlowMode), gs.SpreadBuyBps, gs.SpreadSellBps, time.Now().UTC(),
	)
	return err
}
