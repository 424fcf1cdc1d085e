package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tagd-dev/tagd/internal/source"
)

// ErrNotFound is returned when a requested entity doesn't exist.
var ErrNotFound = errors.New("not found")

// FileEntry is one row of the file table.
type FileEntry struct {
	Path     string
	IsSystem bool
}

// Snapshot is the durable project state: everything the Project needs to
// rebuild its in-memory maps after a restart.
type Snapshot struct {
	Files        map[uint32]FileEntry
	Sources      map[uint32]source.List
	Dependencies map[uint32][]uint32
}

// ProjectStore persists project snapshots in SQLite.
type ProjectStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with the settings the daemon needs.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency between merge writes and queries.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open opens a project store, applying migrations.
func Open(dbPath string) (*ProjectStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &ProjectStore{db: db}, nil
}

// Close closes the database connection.
func (s *ProjectStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the stored state with snap in one transaction.
func (s *ProjectStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"dependencies", "sources", "files"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for id, entry := range snap.Files {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO files (id, path, is_system) VALUES (?, ?, ?)",
			id, entry.Path, entry.IsSystem); err != nil {
			return fmt.Errorf("insert file %d: %w", id, err)
		}
	}

	for fileID, variants := range snap.Sources {
		for idx, v := range variants {
			data, err := cbor.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode variant %d/%d: %w", fileID, idx, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO sources (file_id, variant_idx, data) VALUES (?, ?, ?)",
				fileID, idx, data); err != nil {
				return fmt.Errorf("insert source %d/%d: %w", fileID, idx, err)
			}
		}
	}

	for from, tos := range snap.Dependencies {
		for _, to := range tos {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO dependencies (from_id, to_id) VALUES (?, ?)",
				from, to); err != nil {
				return fmt.Errorf("insert dependency %d->%d: %w", from, to, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored state. An empty database loads as an empty
// (non-nil) snapshot.
func (s *ProjectStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Files:        make(map[uint32]FileEntry),
		Sources:      make(map[uint32]source.List),
		Dependencies: make(map[uint32][]uint32),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, path, is_system FROM files")
	if err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id uint32
		var entry FileEntry
		if err := rows.Scan(&id, &entry.Path, &entry.IsSystem); err != nil {
			return nil, err
		}
		snap.Files[id] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srcRows, err := s.db.QueryContext(ctx,
		"SELECT file_id, data FROM sources ORDER BY file_id, variant_idx")
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	defer func() { _ = srcRows.Close() }()
	for srcRows.Next() {
		var fileID uint32
		var data []byte
		if err := srcRows.Scan(&fileID, &data); err != nil {
			return nil, err
		}
		var v source.Variant
		if err := cbor.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode variant for file %d: %w", fileID, err)
		}
		snap.Sources[fileID] = append(snap.Sources[fileID], &v)
	}
	if err := srcRows.Err(); err != nil {
		return nil, err
	}

	depRows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id FROM dependencies")
	if err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}
	defer func() { _ = depRows.Close() }()
	for depRows.Next() {
		var from, to uint32
		if err := depRows.Scan(&from, &to); err != nil {
			return nil, err
		}
		snap.Dependencies[from] = append(snap.Dependencies[from], to)
	}
	if err := depRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}
