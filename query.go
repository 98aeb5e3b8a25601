package testlens

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jward/testlens/internal/store"
)

// QueryBuilder answers questions about recorded snapshots. By default it
// reads the newest snapshot of any workspace; Root narrows it to one.
type QueryBuilder struct {
	store *store.Store
	root  string
}

// Function is a definition recorded in a snapshot.
type Function = store.Function

// Root restricts the query to snapshots of the workspace at root.
func (q *QueryBuilder) Root(root string) *QueryBuilder {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &QueryBuilder{store: q.store, root: abs}
}

// Snapshots lists the recorded snapshots, newest first.
func (q *QueryBuilder) Snapshots() ([]*Snapshot, error) {
	snaps, err := q.store.Snapshots(q.root)
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	return snaps, nil
}

// Latest returns the newest snapshot, or an error wrapping ErrNoSnapshot.
func (q *QueryBuilder) Latest() (*Snapshot, error) {
	if q.root != "" {
		return q.store.LatestSnapshot(q.root)
	}
	snaps, err := q.Snapshots()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("query: %w", store.ErrNoSnapshot)
	}
	return snaps[0], nil
}

// TestsFor returns the tests that call the qualified function name in the
// latest snapshot, falling back to the class for methods.
func (q *QueryBuilder) TestsFor(name string) ([]string, error) {
	snap, err := q.Latest()
	if err != nil {
		return nil, fmt.Errorf("tests for: %w", err)
	}

	assoc := make(AssociationMap)
	lookup := []string{name}
	if i := strings.Index(name, "::"); i >= 0 {
		lookup = append(lookup, name[:i])
	}
	for _, symbol := range lookup {
		tests, err := q.store.TestsForSymbol(snap.ID, symbol)
		if err != nil {
			return nil, fmt.Errorf("tests for: %w", err)
		}
		assoc[symbol] = tests
	}
	return TestsForFunction(name, assoc), nil
}

// Files returns the files of the latest snapshot ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	snap, err := q.Latest()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	files, err := q.store.FilesBySnapshot(snap.ID)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

// FunctionAt returns the innermost recorded definition of path that spans
// line in the latest snapshot, or nil.
func (q *QueryBuilder) FunctionAt(path string, line int) (*Function, error) {
	snap, err := q.Latest()
	if err != nil {
		return nil, fmt.Errorf("function at: %w", err)
	}
	fns, err := q.store.FunctionsByPath(snap.ID, filepath.ToSlash(path))
	if err != nil {
		return nil, fmt.Errorf("function at: %w", err)
	}

	var best *Function
	for _, fn := range fns {
		if fn.StartLine > line || fn.EndLine < line {
			continue
		}
		if best == nil || fn.EndLine-fn.StartLine < best.EndLine-best.StartLine {
			best = fn
		}
	}
	return best, nil
}

// HasSnapshot reports whether any snapshot matches the query.
func (q *QueryBuilder) HasSnapshot() (bool, error) {
	_, err := q.Latest()
	if errors.Is(err, store.ErrNoSnapshot) {
		return false, nil
	}
	return err == nil, err
}
