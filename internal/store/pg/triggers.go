package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// PGTriggerStore implements store.TriggerStore backed by Postgres.
type PGTriggerStore struct {
	db *sql.DB
}

func NewPGTriggerStore(db *sql.DB) *PGTriggerStore {
	return &PGTriggerStore{db: db}
}

const triggerSelectCols = `id, group_id, phrase, pattern_type, action_type, action_params, priority, is_active, scope, created_at, updated_at`

func (s *PGTriggerStore) ListForGroup(ctx context.Context, groupID string) ([]store.Trigger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+triggerSelectCols+` FROM triggers
		 WHERE is_active = true AND (group_id = $1 OR scope = 'system')
		 ORDER BY priority, created_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.Trigger
	for rows.Next() {
		var t store.Trigger
		var groupCol sql.NullString
		var params []byte
		if err := rows.Scan(
			&t.ID, &groupCol, &t.Phrase, &t.PatternType, &t.ActionType, &params,
			&t.Priority, &t.IsActive, &t.Scope, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		t.GroupID = groupCol.String
		if len(params) > 0 {
			t.ActionParams = json.RawMessage(params)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *PGTriggerStore) Upsert(ctx context.Context, t *store.Trigger) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.Must(uuid.NewV7())
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	params := []byte(t.ActionParams)
	if len(params) == 0 {
		params = []byte("{}")
	}
	var groupCol sql.NullString
	if t.GroupID != "" {
		groupCol = sql.NullString{String: t.GroupID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO triggers (`+triggerSelectCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   group_id = EXCLUDED.group_id,
		   phrase = EXCLUDED.phrase,
		   pattern_type = EXCLUDED.pattern_type,
		   action_type = EXCLUDED.action_type,
		   action_params = EXCLUDED.action_params,
		   priority = EXCLUDED.priority,
		   is_active = EXCLUDED.is_active,
		   scope = EXCLUDED.scope,
		   updated_at = EXCLUDED.updated_at`,
		t.ID, groupCol, t.Phrase, t.PatternType, t.ActionType, params,
		t.Priority, t.IsActive, t.Scope, t.CreatedAt, t.UpdatedAt,
	)
	return err
}
