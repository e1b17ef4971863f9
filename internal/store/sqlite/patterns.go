package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// PatternStore implements store.PatternStore on SQLite; keyword lists are
// stored as JSON arrays.
type PatternStore struct {
	db *sql.DB
}

func (s *PatternStore) ListPatterns(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pattern_key, keywords FROM system_patterns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var keywords []string
		if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
			return nil, fmt.Errorf("decode pattern %s: %w", key, err)
		}
		result[key] = keywords
	}
	return result, rows.Err()
}

func (s *PatternStore) SetPattern(ctx context.Context, key string, keywords []string) error {
	if keywords == nil {
		keywords = []string{}
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO system_patterns (pattern_key, keywords, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (pattern_key) DO UPDATE SET
		   keywords = excluded.keywords,
		   updated_at = excluded.updated_at`,
		key, string(raw), time.Now().UTC(),
	)
	return err
}

// MessageLogStore implements store.MessageLogStore on SQLite.
type MessageLogStore struct {
	db *sql.DB
}

func (s *MessageLogStore) Record(ctx context.Context, e store.MessageLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.Must(uuid.NewV7())
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_log (id, group_id, sender_id, sender_name, text, destination, rule, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.GroupID, e.SenderID, e.SenderName, e.Text, e.Destination, e.Rule, e.ReceivedAt,
	)
	return err
}

func (s *MessageLogStore) ListByGroup(ctx context.Context, groupID string, limit int) ([]store.MessageLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, sender_id, sender_name, text, destination, rule, received_at
		 FROM message_log WHERE group_id = ?
		 ORDER BY received_at DESC LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.MessageLogEntry
	for rows.Next() {
		var e store.MessageLogEntry
		var id string
		if err := rows.Scan(&id, &e.GroupID, &e.SenderID, &e.SenderName, &e.Text, &e.Destination, &e.Rule, &e.ReceivedAt); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
