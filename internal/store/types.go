package store

import "time"

// Snapshot is one recorded state of a workspace.
type Snapshot struct {
	ID          string
	Root        string
	Fingerprint string
	FileCount   int
	TestCount   int
	CreatedAt   time.Time
}

// File is a Python file captured in a snapshot.
type File struct {
	ID         int64
	SnapshotID string
	Path       string // slash separated, relative to the snapshot root
	Hash       string
	IsTest     bool
}

// Function is a definition's canonical hash within a file.
type Function struct {
	ID            int64
	FileID        int64
	QualifiedName string
	Hash          string
	StartLine     int
	EndLine       int
}

// Association records that a test calls an imported symbol. An empty TestID
// marks a symbol that no test calls.
type Association struct {
	ID         int64
	SnapshotID string
	Symbol     string
	TestID     string
}
