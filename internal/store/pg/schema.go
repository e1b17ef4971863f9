package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RequiredSchemaVersion is the migrations/ version this binary reads and writes.
const RequiredSchemaVersion uint = 1

// Schema check failures.
var (
	ErrSchemaMissing  = errors.New("database schema not installed")
	ErrSchemaOutdated = errors.New("database schema is outdated")
	ErrSchemaDirty    = errors.New("database schema is dirty (failed migration)")
	ErrSchemaAhead    = errors.New("database schema is newer than this binary")
)

// SchemaStatus is the golang-migrate state of the shared database.
type SchemaStatus struct {
	Installed bool
	Version   uint
	Dirty     bool
}

// Err returns nil when the schema matches RequiredSchemaVersion.
func (s SchemaStatus) Err() error {
	switch {
	case !s.Installed:
		return fmt.Errorf("%w, run: otcdesk migrate up", ErrSchemaMissing)
	case s.Dirty:
		return fmt.Errorf("%w: version %d, run: otcdesk migrate force %d", ErrSchemaDirty, s.Version, s.Version-1)
	case s.Version < RequiredSchemaVersion:
		return fmt.Errorf("%w: v%d, required v%d, run: otcdesk migrate up", ErrSchemaOutdated, s.Version, RequiredSchemaVersion)
	case s.Version > RequiredSchemaVersion:
		return fmt.Errorf("%w: v%d, binary requires v%d", ErrSchemaAhead, s.Version, RequiredSchemaVersion)
	}
	return nil
}

// CheckSchema reads schema_migrations. A missing table reports an
// uninstalled schema rather than an error.
func CheckSchema(ctx context.Context, db *sql.DB) (SchemaStatus, error) {
	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'schema_migrations')`,
	).Scan(&exists); err != nil {
		return SchemaStatus{}, fmt.Errorf("check schema table: %w", err)
	}
	if !exists {
		return SchemaStatus{}, nil
	}

	var s SchemaStatus
	err := db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&s.Version, &s.Dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return SchemaStatus{}, nil
	}
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("read schema version: %w", err)
	}
	s.Installed = true
	return s, nil
}
