package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// PGPatternStore implements store.PatternStore backed by Postgres.
type PGPatternStore struct {
	db *sql.DB
}

func NewPGPatternStore(db *sql.DB) *PGPatternStore {
	return &PGPatternStore{db: db}
}

func (s *PGPatternStore) ListPatterns(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pattern_key, keywords FROM system_patterns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var key string
		var keywords []string
		if err := rows.Scan(&key, pq.Array(&keywords)); err != nil {
			return nil, err
		}
		result[key] = keywords
	}
	return result, rows.Err()
}

func (s *PGPatternStore) SetPattern(ctx context.Context, key string, keywords []string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_patterns (pattern_key, keywords, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (pattern_key) DO UPDATE SET
		   keywords = EXCLUDED.keywords,
		   updated_at = EXCLUDED.updated_at`,
		key, pq.Array(keywords), time.Now(),
	)
	return err
}

// PGMessageLogStore implements store.MessageLogStore backed by Postgres.
type PGMessageLogStore struct {
	db *sql.DB
}

func NewPGMessageLogStore(db *sql.DB) *PGMessageLogStore {
	return &PGMessageLogStore{db: db}
}

func (s *PGMessageLogStore) Record(ctx context.Context, e store.MessageLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.Must(uuid.NewV7())
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_log (id, group_id, sender_id, sender_name, text, destination, rule, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.GroupID, e.SenderID, e.SenderName, e.Text, e.Destination, e.Rule, e.ReceivedAt,
	)
	return err
}

func (s *PGMessageLogStore) ListByGroup(ctx context.Context, groupID string, limit int) ([]store.MessageLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, sender_id, sender_name, text, destination, rule, received_at
		 FROM message_log WHERE group_id = $1
		 ORDER BY received_at DESC LIMIT $2`, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.MessageLogEntry
	for rows.Next() {
		var e store.MessageLogEntry
		if err := rows.Scan(&e.ID, &e.GroupID, &e.SenderID, &e.SenderName, &e.Text, &e.Destination, &e.Rule, &e.ReceivedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
