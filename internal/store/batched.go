package store

import "sync"

// BatchedStore buffers the rows of one snapshot in memory using fake
// (negative) IDs until CommitBatch writes them in a single transaction.
//
// Thread safety: the mutex protects fake ID allocation and slice appends, so
// several workers may write into the same batch.
type BatchedStore struct {
	mu sync.Mutex

	Snapshot     Snapshot
	Files        []File
	Functions    []Function
	Associations []Association

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore for snap. File and association rows
// inherit snap.ID.
func NewBatchedStore(snap Snapshot) *BatchedStore {
	return &BatchedStore{
		Snapshot:   snap,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertFile(f *File) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	f.ID = fakeID
	f.SnapshotID = b.Snapshot.ID
	b.Files = append(b.Files, *f)
	return fakeID, nil
}

func (b *BatchedStore) InsertFunction(fn *Function) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	fn.ID = fakeID
	b.Functions = append(b.Functions, *fn)
	return fakeID, nil
}

func (b *BatchedStore) InsertAssociation(a *Association) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	a.ID = fakeID
	a.SnapshotID = b.Snapshot.ID
	b.Associations = append(b.Associations, *a)
	return fakeID, nil
}

// Counts returns the number of buffered files and of distinct tests.
func (b *BatchedStore) Counts() (files, tests int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]struct{})
	for _, a := range b.Associations {
		if a.TestID != "" {
			seen[a.TestID] = struct{}{}
		}
	}
	return len(b.Files), len(seen)
}
