package store

// DataStore is the write interface used while building a snapshot. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel hashing)
// implement it.
type DataStore interface {
	InsertFile(f *File) (int64, error)
	InsertFunction(fn *Function) (int64, error)
	InsertAssociation(a *Association) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
