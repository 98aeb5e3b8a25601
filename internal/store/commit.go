package store

import "fmt"

// CommitBatch inserts the snapshot and all buffered rows of a BatchedStore
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive) IDs, and function rows are rewritten to point at the real file
// IDs.
//
// Insert order respects FK dependencies:
//  1. Snapshot
//  2. Files (depend on snapshot_id)
//  3. Functions (depend on file_id)
//  4. Associations (depend on snapshot_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertSnapshotTx(tx, &batch.Snapshot); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	fakeToReal := make(map[int64]int64, len(batch.Files))
	for _, f := range batch.Files {
		fakeID := f.ID
		f.SnapshotID = batch.Snapshot.ID
		realID, err := insertFileTx(tx, &f)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		fakeToReal[fakeID] = realID
	}

	for _, fn := range batch.Functions {
		if fn.FileID < 0 {
			realID, ok := fakeToReal[fn.FileID]
			if !ok {
				return fmt.Errorf("commit batch: function %q: unknown file id %d", fn.QualifiedName, fn.FileID)
			}
			fn.FileID = realID
		}
		if _, err := insertFunctionTx(tx, &fn); err != nil {
			return fmt.Errorf("commit batch: function %q: %w", fn.QualifiedName, err)
		}
	}

	for _, a := range batch.Associations {
		a.SnapshotID = batch.Snapshot.ID
		if _, err := insertAssociationTx(tx, &a); err != nil {
			return fmt.Errorf("commit batch: association %q: %w", a.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}
