package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_FakeIDs(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore(Snapshot{ID: "snap", Root: "/repo"})

	fileID, err := batch.InsertFile(&File{Path: "a.py", Hash: "h"})
	require.NoError(t, err)
	assert.Negative(t, fileID, "batched IDs should be negative")

	fnID, err := batch.InsertFunction(&Function{FileID: fileID, QualifiedName: "f", Hash: "h"})
	require.NoError(t, err)
	assert.Negative(t, fnID)
	assert.NotEqual(t, fileID, fnID)

	assert.Equal(t, "snap", batch.Files[0].SnapshotID)
}

func TestCommitBatch_RemapsIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	batch := NewBatchedStore(Snapshot{ID: "snap", Root: "/repo", Fingerprint: "fp", CreatedAt: time.Now().UTC()})
	lib, err := batch.InsertFile(&File{Path: "lib.py", Hash: "h1"})
	require.NoError(t, err)
	test, err := batch.InsertFile(&File{Path: "test_lib.py", Hash: "h2", IsTest: true})
	require.NoError(t, err)
	_, err = batch.InsertFunction(&Function{FileID: lib, QualifiedName: "helper", Hash: "a", StartLine: 1, EndLine: 2})
	require.NoError(t, err)
	_, err = batch.InsertFunction(&Function{FileID: test, QualifiedName: "test_helper", Hash: "b", StartLine: 3, EndLine: 4})
	require.NoError(t, err)
	_, err = batch.InsertAssociation(&Association{Symbol: "helper", TestID: "test_lib.py::test_helper"})
	require.NoError(t, err)

	files, tests := batch.Counts()
	assert.Equal(t, 2, files)
	assert.Equal(t, 1, tests)

	require.NoError(t, s.CommitBatch(batch))

	snap, err := s.LatestSnapshot("/repo")
	require.NoError(t, err)
	assert.Equal(t, "snap", snap.ID)

	fns, err := s.FunctionsByPath("snap", "test_lib.py")
	require.NoError(t, err)
	require.Len(t, fns, 1)
	assert.Equal(t, "test_helper", fns[0].QualifiedName)
	assert.Positive(t, fns[0].FileID)

	got, err := s.TestsForSymbol("snap", "helper")
	require.NoError(t, err)
	assert.Equal(t, []string{"test_lib.py::test_helper"}, got)
}

func TestCommitBatch_RollsBackOnError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	batch := NewBatchedStore(Snapshot{ID: "snap", Root: "/repo", CreatedAt: time.Now().UTC()})
	_, err := batch.InsertFile(&File{Path: "a.py", Hash: "h"})
	require.NoError(t, err)
	_, err = batch.InsertFunction(&Function{FileID: -99, QualifiedName: "orphan", Hash: "h"})
	require.NoError(t, err)

	require.Error(t, s.CommitBatch(batch))

	snaps, err := s.Snapshots("")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestBatchedStore_ConcurrentInserts(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore(Snapshot{ID: "snap"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = batch.InsertAssociation(&Association{Symbol: "s"})
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, a := range batch.Associations {
		assert.False(t, seen[a.ID], "duplicate fake id %d", a.ID)
		seen[a.ID] = true
	}
	assert.Len(t, batch.Associations, 400)
}
