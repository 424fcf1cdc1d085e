package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion tracks the database schema version.
const CurrentSchemaVersion = 1

// Migration represents one schema migration.
type Migration struct {
	Version int
	Up      string
}

// AllMigrations contains every migration in order.
var AllMigrations = []Migration{
	{Version: 1, Up: migrationV1Up},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Every file the project has seen, keyed by its interned id.
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    is_system INTEGER NOT NULL DEFAULT 0
);

-- Compile variants per source file, stored in their job order.
CREATE TABLE IF NOT EXISTS sources (
    file_id INTEGER NOT NULL,
    variant_idx INTEGER NOT NULL,
    data BLOB NOT NULL,
    PRIMARY KEY (file_id, variant_idx),
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
);

-- Include edges: from_id includes to_id.
CREATE TABLE IF NOT EXISTS dependencies (
    from_id INTEGER NOT NULL,
    to_id INTEGER NOT NULL,
    PRIMARY KEY (from_id, to_id)
);

CREATE INDEX IF NOT EXISTS idx_dependencies_to ON dependencies(to_id);
`

// ApplyMigrations brings the schema up to CurrentSchemaVersion.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	var applied int
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&applied)
	if err != nil {
		// schema_version does not exist yet on a fresh database.
		applied = 0
	}
	for _, m := range AllMigrations {
		if m.Version <= applied {
			continue
		}
		if _, err := db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := db.ExecContext(ctx,
			"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
