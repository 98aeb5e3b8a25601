package store

import (
	"database/sql"
	"fmt"
)

// --- Snapshot operations ---

// InsertSnapshot records snap. The caller assigns snap.ID.
func (s *Store) InsertSnapshot(snap *Snapshot) error {
	return insertSnapshotTx(s.db, snap)
}

func (s *Store) scanSnapshots(query string, args ...any) ([]*Snapshot, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var snaps []*Snapshot
	for rows.Next() {
		snap := &Snapshot{}
		if err := rows.Scan(&snap.ID, &snap.Root, &snap.Fingerprint, &snap.FileCount, &snap.TestCount, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

const snapshotColumns = "id, root, fingerprint, file_count, test_count, created_at"

// SnapshotByID returns the snapshot with id, or ErrNoSnapshot.
func (s *Store) SnapshotByID(id string) (*Snapshot, error) {
	snaps, err := s.scanSnapshots("SELECT "+snapshotColumns+" FROM snapshots WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("snapshot by id: %w", err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: id %s", ErrNoSnapshot, id)
	}
	return snaps[0], nil
}

// LatestSnapshot returns the most recent snapshot of root, or ErrNoSnapshot.
func (s *Store) LatestSnapshot(root string) (*Snapshot, error) {
	snaps, err := s.scanSnapshots(
		"SELECT "+snapshotColumns+" FROM snapshots WHERE root = ? ORDER BY created_at DESC, rowid DESC LIMIT 1", root,
	)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoSnapshot, root)
	}
	return snaps[0], nil
}

// Snapshots lists the snapshots of root, newest first. An empty root lists
// every snapshot.
func (s *Store) Snapshots(root string) ([]*Snapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM snapshots"
	var args []any
	if root != "" {
		query += " WHERE root = ?"
		args = append(args, root)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	snaps, err := s.scanSnapshots(query, args...)
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	return snaps, nil
}

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	return insertFileTx(s.db, f)
}

// FilesBySnapshot returns every file of a snapshot ordered by path.
func (s *Store) FilesBySnapshot(snapshotID string) ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, snapshot_id, path, hash, is_test FROM files WHERE snapshot_id = ? ORDER BY path", snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("files by snapshot: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.SnapshotID, &f.Path, &f.Hash, &f.IsTest); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileByPath returns the file at path in a snapshot, or nil.
func (s *Store) FileByPath(snapshotID, path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, snapshot_id, path, hash, is_test FROM files WHERE snapshot_id = ? AND path = ?", snapshotID, path,
	).Scan(&f.ID, &f.SnapshotID, &f.Path, &f.Hash, &f.IsTest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// --- Function operations ---

func (s *Store) InsertFunction(fn *Function) (int64, error) {
	return insertFunctionTx(s.db, fn)
}

func (s *Store) queryFunctions(query string, args ...any) ([]*Function, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fns []*Function
	for rows.Next() {
		fn := &Function{}
		if err := rows.Scan(&fn.ID, &fn.FileID, &fn.QualifiedName, &fn.Hash, &fn.StartLine, &fn.EndLine); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

// FunctionsByFile returns the functions of a file ordered by start line.
func (s *Store) FunctionsByFile(fileID int64) ([]*Function, error) {
	fns, err := s.queryFunctions(
		"SELECT id, file_id, qualified_name, hash, start_line, end_line FROM functions WHERE file_id = ? ORDER BY start_line, qualified_name",
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("functions by file: %w", err)
	}
	return fns, nil
}

// FunctionsByPath returns the functions recorded for path in a snapshot.
func (s *Store) FunctionsByPath(snapshotID, path string) ([]*Function, error) {
	fns, err := s.queryFunctions(
		`SELECT fn.id, fn.file_id, fn.qualified_name, fn.hash, fn.start_line, fn.end_line
		 FROM functions fn JOIN files f ON f.id = fn.file_id
		 WHERE f.snapshot_id = ? AND f.path = ?
		 ORDER BY fn.start_line, fn.qualified_name`,
		snapshotID, path,
	)
	if err != nil {
		return nil, fmt.Errorf("functions by path: %w", err)
	}
	return fns, nil
}

// FunctionsBySnapshot returns every function of a snapshot grouped by file ID.
func (s *Store) FunctionsBySnapshot(snapshotID string) (map[int64][]*Function, error) {
	fns, err := s.queryFunctions(
		`SELECT fn.id, fn.file_id, fn.qualified_name, fn.hash, fn.start_line, fn.end_line
		 FROM functions fn JOIN files f ON f.id = fn.file_id
		 WHERE f.snapshot_id = ?
		 ORDER BY fn.file_id, fn.start_line, fn.qualified_name`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("functions by snapshot: %w", err)
	}
	out := make(map[int64][]*Function)
	for _, fn := range fns {
		out[fn.FileID] = append(out[fn.FileID], fn)
	}
	return out, nil
}

// --- Association operations ---

func (s *Store) InsertAssociation(a *Association) (int64, error) {
	return insertAssociationTx(s.db, a)
}

func (s *Store) queryAssociations(query string, args ...any) ([]*Association, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Association
	for rows.Next() {
		a := &Association{}
		var testID sql.NullString
		if err := rows.Scan(&a.ID, &a.SnapshotID, &a.Symbol, &testID); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		a.TestID = testID.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// AssociationsBySnapshot returns every association row of a snapshot ordered
// by symbol and test.
func (s *Store) AssociationsBySnapshot(snapshotID string) ([]*Association, error) {
	out, err := s.queryAssociations(
		"SELECT id, snapshot_id, symbol, test_id FROM associations WHERE snapshot_id = ? ORDER BY symbol, test_id",
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("associations by snapshot: %w", err)
	}
	return out, nil
}

// TestsForSymbol returns the tests recorded as calling symbol.
func (s *Store) TestsForSymbol(snapshotID, symbol string) ([]string, error) {
	rows, err := s.queryAssociations(
		"SELECT id, snapshot_id, symbol, test_id FROM associations WHERE snapshot_id = ? AND symbol = ? AND test_id IS NOT NULL ORDER BY test_id",
		snapshotID, symbol,
	)
	if err != nil {
		return nil, fmt.Errorf("tests for symbol: %w", err)
	}
	tests := make([]string, 0, len(rows))
	for _, a := range rows {
		tests = append(tests, a.TestID)
	}
	return tests, nil
}

// --- Shared insert helpers (used by both direct inserts and CommitBatch) ---

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertSnapshotTx(ex execer, snap *Snapshot) error {
	_, err := ex.Exec(
		"INSERT INTO snapshots ("+snapshotColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		snap.ID, snap.Root, snap.Fingerprint, snap.FileCount, snap.TestCount, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func insertFileTx(ex execer, f *File) (int64, error) {
	res, err := ex.Exec(
		"INSERT INTO files (snapshot_id, path, hash, is_test) VALUES (?, ?, ?, ?)",
		f.SnapshotID, f.Path, f.Hash, f.IsTest,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

func insertFunctionTx(ex execer, fn *Function) (int64, error) {
	res, err := ex.Exec(
		"INSERT INTO functions (file_id, qualified_name, hash, start_line, end_line) VALUES (?, ?, ?, ?, ?)",
		fn.FileID, fn.QualifiedName, fn.Hash, fn.StartLine, fn.EndLine,
	)
	if err != nil {
		return 0, fmt.Errorf("insert function: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	fn.ID = id
	return id, nil
}

func insertAssociationTx(ex execer, a *Association) (int64, error) {
	res, err := ex.Exec(
		"INSERT INTO associations (snapshot_id, symbol, test_id) VALUES (?, ?, ?)",
		a.SnapshotID, a.Symbol, nullString(a.TestID),
	)
	if err != nil {
		return 0, fmt.Errorf("insert association: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	return id, nil
}
