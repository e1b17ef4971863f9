// Package sqlite implements the store interfaces on an embedded SQLite database
// for standalone deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS groups (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL DEFAULT 'learning',
	is_control INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS group_settings (
	group_id        TEXT PRIMARY KEY,
	deal_flow_mode  TEXT NOT NULL DEFAULT 'classic',
	spread_buy_bps  INTEGER NOT NULL DEFAULT 0,
	spread_sell_bps INTEGER NOT NULL DEFAULT 0,
	updated_at      TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS triggers (
	id            TEXT PRIMARY KEY,
	group_id      TEXT,
	phrase        TEXT NOT NULL,
	pattern_type  TEXT NOT NULL DEFAULT 'contains',
	action_type   TEXT NOT NULL,
	action_params TEXT NOT NULL DEFAULT '{}',
	priority      INTEGER NOT NULL DEFAULT 100,
	is_active     INTEGER NOT NULL DEFAULT 1,
	scope         TEXT NOT NULL DEFAULT 'user',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS triggers_group_idx ON triggers (group_id);
CREATE TABLE IF NOT EXISTS deals (
	id           TEXT PRIMARY KEY,
	group_id     TEXT NOT NULL,
	client_id    TEXT NOT NULL,
	state        TEXT NOT NULL,
	quoted_price TEXT NOT NULL DEFAULT '0',
	amount       TEXT NOT NULL DEFAULT '0',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS deals_active_client_idx ON deals (group_id, client_id)
	WHERE state NOT IN ('completed', 'cancelled', 'expired');
CREATE TABLE IF NOT EXISTS system_patterns (
	pattern_key TEXT PRIMARY KEY,
	keywords    TEXT NOT NULL DEFAULT '[]',
	updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS message_log (
	id          TEXT PRIMARY KEY,
	group_id    TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL,
	destination TEXT NOT NULL,
	rule        TEXT NOT NULL DEFAULT '',
	received_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS message_log_group_idx ON message_log (group_id, received_at);
`

// OpenDB opens (or creates) the SQLite database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer: SQLite serializes writes anyway and an in-memory database
	// is private to its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return db, nil
}

// NewStores creates all stores backed by SQLite (standalone mode).
func NewStores(ctx context.Context, path string) (*store.Stores, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &store.Stores{
		Groups:        &GroupStore{db: db},
		GroupSettings: &GroupSettingsStore{db: db},
		Triggers:      &TriggerStore{db: db},
		Deals:         &DealStore{db: db},
		Patterns:      &PatternStore{db: db},
		MessageLog:    &MessageLogStore{db: db},
		DB:            db,
	}, nil
}
