package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// TriggerStore implements store.TriggerStore on SQLite.
type TriggerStore struct {
	db *sql.DB
}

func (s *TriggerStore) ListForGroup(ctx context.Context, groupID string) ([]store.Trigger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, phrase, pattern_type, action_type, action_params, priority, is_active, scope, created_at, updated_at
		 FROM triggers
		 WHERE is_active = 1 AND (group_id = ? OR scope = 'system')
		 ORDER BY priority, created_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.Trigger
	for rows.Next() {
		var t store.Trigger
		var id string
		var groupCol sql.NullString
		var params string
		if err := rows.Scan(
			&id, &groupCol, &t.Phrase, &t.PatternType, &t.ActionType, &params,
			&t.Priority, &t.IsActive, &t.Scope, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		t.GroupID = groupCol.String
		if params != "" {
			t.ActionParams = json.RawMessage(params)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *TriggerStore) Upsert(ctx context.Context, t *store.Trigger) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.Must(uuid.NewV7())
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Scope == "" {
		t.Scope = store.TriggerScopeUser
	}
	if t.PatternType == "" {
		t.PatternType = store.PatternContains
	}

	params := string(t.ActionParams)
	if params == "" {
		params = "{}"
	}
	var groupCol any
	if t.GroupID != "" {
		groupCol = t.GroupID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO triggers (id, group_id, phrase, pattern_type, action_type, action_params, priority, is_active, scope, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   group_id = excluded.group_id,
		   phrase = excluded.phrase,
		   pattern_type = excluded.pattern_type,
		   action_type = excluded.action_type,
		   action_params = excluded.action_params,
		   priority = excluded.priority,
		   is_active = excluded.is_active,
		   scope = excluded.scope,
		   updated_at = excluded.updated_at`,
		t.ID.String(), groupCol, t.Phrase, string(t.PatternType), string(t.ActionType), params,
		t.Priority, t.IsActive, string(t.Scope), t.CreatedAt, t.UpdatedAt,
	)
	return err
}
