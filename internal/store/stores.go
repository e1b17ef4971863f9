package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned by lookups that address a single missing row.
var ErrNotFound = errors.New("not found")

// StoreConfig configures store creation.
type StoreConfig struct {
	PostgresDSN string
	SQLitePath  string
}

// Stores is the top-level container for all storage backends.
// Both the Postgres (managed) and SQLite (standalone) backends fill every field.
type Stores struct {
	Groups        GroupStore
	GroupSettings GroupSettingsStore
	Triggers      TriggerStore
	Deals         DealStore
	Patterns      PatternStore
	MessageLog    MessageLogStore

	DB *sql.DB
}

// Close releases the underlying database handle.
func (s *Stores) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
