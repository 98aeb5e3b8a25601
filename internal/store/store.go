package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoSnapshot is returned when a workspace has no recorded snapshot.
var ErrNoSnapshot = errors.New("store: no snapshot")

// Store is the SQLite data access layer for workspace snapshots.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return s.SetMetadata("schema_version", SchemaVersion)
}

// SchemaVersion identifies the layout created by Migrate.
const SchemaVersion = "1"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
  id              TEXT PRIMARY KEY,
  root            TEXT NOT NULL,
  fingerprint     TEXT NOT NULL,
  file_count      INTEGER NOT NULL DEFAULT 0,
  test_count      INTEGER NOT NULL DEFAULT 0,
  created_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  path            TEXT NOT NULL,
  hash            TEXT NOT NULL,
  is_test         BOOLEAN NOT NULL DEFAULT FALSE,
  UNIQUE (snapshot_id, path)
);

CREATE TABLE IF NOT EXISTS functions (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  qualified_name  TEXT NOT NULL,
  hash            TEXT NOT NULL,
  start_line      INTEGER,
  end_line        INTEGER
);

CREATE TABLE IF NOT EXISTS associations (
  id              INTEGER PRIMARY KEY,
  snapshot_id     TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
  symbol          TEXT NOT NULL,
  test_id         TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshots_root ON snapshots(root, created_at);
CREATE INDEX IF NOT EXISTS idx_files_snapshot ON files(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(file_id);
CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(qualified_name);
CREATE INDEX IF NOT EXISTS idx_associations_snapshot ON associations(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_associations_symbol ON associations(snapshot_id, symbol);
`

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return v, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// PruneSnapshots deletes all but the keep most recent snapshots of root,
// together with their files, functions and associations. keep <= 0 keeps
// everything. Returns the number of snapshots removed.
func (s *Store) PruneSnapshots(root string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	rows, err := s.db.Query(
		"SELECT id FROM snapshots WHERE root = ? ORDER BY created_at DESC, rowid DESC LIMIT -1 OFFSET ?",
		root, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: query: %w", err)
	}
	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("prune snapshots: scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("prune snapshots: rows: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: begin: %w", err)
	}
	defer tx.Rollback()

	in := placeholderList(len(ids))
	// Delete in reverse-dependency order; the cascade covers databases opened
	// without foreign keys.
	stmts := []string{
		"DELETE FROM functions WHERE file_id IN (SELECT id FROM files WHERE snapshot_id IN (" + in + "))",
		"DELETE FROM files WHERE snapshot_id IN (" + in + ")",
		"DELETE FROM associations WHERE snapshot_id IN (" + in + ")",
		"DELETE FROM snapshots WHERE id IN (" + in + ")",
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, ids...); err != nil {
			return 0, fmt.Errorf("prune snapshots: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune snapshots: commit: %w", err)
	}
	return len(ids), nil
}
