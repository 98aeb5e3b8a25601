package testlens

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jward/testlens/internal/metrics"
	"github.com/jward/testlens/internal/store"
)

// DefaultKeep is the number of snapshots retained per workspace.
const DefaultKeep = 5

// Engine couples an Analyzer with a snapshot store so impact can be computed
// against the last recorded state of a workspace.
type Engine struct {
	store    *store.Store
	analyzer *Analyzer
	keep     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithAnalyzer sets the Analyzer used for hashing and associations.
func WithAnalyzer(a *Analyzer) Option {
	return func(e *Engine) {
		if a != nil {
			e.analyzer = a
		}
	}
}

// WithKeep sets how many snapshots per workspace survive pruning. Zero keeps
// all of them.
func WithKeep(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.keep = n
		}
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("testlens: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("testlens: migrate: %w", err)
	}

	e := &Engine{store: s, keep: DefaultKeep}
	for _, opt := range opts {
		opt(e)
	}
	if e.analyzer == nil {
		e.analyzer = NewAnalyzer()
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Analyzer returns the Engine's Analyzer.
func (e *Engine) Analyzer() *Analyzer {
	return e.analyzer
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

func absRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("testlens: resolve root %s: %w", root, err)
	}
	return abs, nil
}

// Snapshot hashes the workspace at root, computes its associations and
// records both as a new snapshot. Older snapshots beyond the keep limit are
// pruned.
func (e *Engine) Snapshot(ctx context.Context, root string) (*Snapshot, error) {
	abs, err := absRoot(root)
	if err != nil {
		return nil, err
	}
	hashes, err := e.analyzer.HashDirectory(ctx, abs)
	if err != nil {
		return nil, err
	}
	assoc, err := e.analyzer.WorkspaceAssociations(ctx, abs)
	if err != nil {
		return nil, err
	}
	return e.commit(abs, hashes, assoc)
}

// commit writes one snapshot in a single transaction.
func (e *Engine) commit(root string, hashes WorkspaceHash, assoc AssociationMap) (*Snapshot, error) {
	defer metrics.ObserveSince("snapshot_commit", time.Now())

	batch := store.NewBatchedStore(store.Snapshot{
		ID:          uuid.NewString(),
		Root:        root,
		Fingerprint: store.ComputeFingerprint(hashes.Fingerprints()),
		CreatedAt:   time.Now().UTC(),
	})

	tests := 0
	for _, path := range hashes.Paths() {
		fh := hashes[path]
		fileID, err := batch.InsertFile(&store.File{Path: path, Hash: fh.Hash, IsTest: fh.IsTestFile})
		if err != nil {
			return nil, fmt.Errorf("testlens: snapshot file %s: %w", path, err)
		}
		for name, fn := range fh.Functions {
			if fh.IsTestFile && e.analyzer.isTestFunction(name) {
				tests++
			}
			if _, err := batch.InsertFunction(&store.Function{
				FileID:        fileID,
				QualifiedName: name,
				Hash:          fn.Hash,
				StartLine:     fn.StartLine,
				EndLine:       fn.EndLine,
			}); err != nil {
				return nil, fmt.Errorf("testlens: snapshot function %s: %w", name, err)
			}
		}
	}
	for symbol, ids := range assoc {
		if len(ids) == 0 {
			if _, err := batch.InsertAssociation(&store.Association{Symbol: symbol}); err != nil {
				return nil, fmt.Errorf("testlens: snapshot association %s: %w", symbol, err)
			}
			continue
		}
		for _, id := range ids {
			if _, err := batch.InsertAssociation(&store.Association{Symbol: symbol, TestID: id}); err != nil {
				return nil, fmt.Errorf("testlens: snapshot association %s: %w", symbol, err)
			}
		}
	}

	files, _ := batch.Counts()
	batch.Snapshot.FileCount = files
	batch.Snapshot.TestCount = tests

	if err := e.store.CommitBatch(batch); err != nil {
		return nil, fmt.Errorf("testlens: commit snapshot: %w", err)
	}
	metrics.SnapshotsCommitted.Inc()

	logger := e.analyzer.logger.WithFields(logrus.Fields{
		"snapshot": batch.Snapshot.ID,
		"root":     root,
		"files":    files,
		"tests":    tests,
	})
	logger.Info("snapshot committed")

	if pruned, err := e.store.PruneSnapshots(root, e.keep); err != nil {
		logger.WithError(err).Warn("failed to prune snapshots")
	} else if pruned > 0 {
		logger.WithField("pruned", pruned).Debug("pruned old snapshots")
	}

	snap := batch.Snapshot
	return &snap, nil
}

// WorkspaceHash rebuilds the WorkspaceHash recorded by a snapshot.
func (e *Engine) WorkspaceHash(snapshotID string) (WorkspaceHash, error) {
	files, err := e.store.FilesBySnapshot(snapshotID)
	if err != nil {
		return nil, fmt.Errorf("testlens: workspace hash: %w", err)
	}
	functions, err := e.store.FunctionsBySnapshot(snapshotID)
	if err != nil {
		return nil, fmt.Errorf("testlens: workspace hash: %w", err)
	}

	out := make(WorkspaceHash, len(files))
	for _, f := range files {
		fh := &FileHash{Hash: f.Hash, IsTestFile: f.IsTest, Functions: map[string]FunctionHash{}}
		for _, fn := range functions[f.ID] {
			fh.Functions[fn.QualifiedName] = FunctionHash{Hash: fn.Hash, StartLine: fn.StartLine, EndLine: fn.EndLine}
		}
		out[f.Path] = fh
	}
	return out, nil
}

// Associations rebuilds the AssociationMap recorded by a snapshot.
func (e *Engine) Associations(snapshotID string) (AssociationMap, error) {
	rows, err := e.store.AssociationsBySnapshot(snapshotID)
	if err != nil {
		return nil, fmt.Errorf("testlens: associations: %w", err)
	}
	out := make(AssociationMap)
	for _, r := range rows {
		if _, ok := out[r.Symbol]; !ok {
			out[r.Symbol] = []string{}
		}
		if r.TestID != "" {
			out[r.Symbol] = append(out[r.Symbol], r.TestID)
		}
	}
	return out, nil
}

// previous returns the WorkspaceHash of the latest snapshot of root, or an
// empty one when root has never been recorded.
func (e *Engine) previous(root string) (WorkspaceHash, error) {
	snap, err := e.store.LatestSnapshot(root)
	if errors.Is(err, store.ErrNoSnapshot) {
		return WorkspaceHash{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("testlens: %w", err)
	}
	return e.WorkspaceHash(snap.ID)
}

// Impacted compares the workspace at root with its latest snapshot and
// returns the tests to rerun. Without a snapshot every test is impacted. With
// update set, the current state is recorded as a new snapshot.
func (e *Engine) Impacted(ctx context.Context, root string, update bool) (*Impact, error) {
	abs, err := absRoot(root)
	if err != nil {
		return nil, err
	}
	old, err := e.previous(abs)
	if err != nil {
		return nil, err
	}
	cur, err := e.analyzer.HashDirectory(ctx, abs)
	if err != nil {
		return nil, err
	}
	assoc, err := e.analyzer.WorkspaceAssociations(ctx, abs)
	if err != nil {
		return nil, err
	}

	impact := e.analyzer.ImpactedTests(Diff(old, cur), assoc)
	if update {
		if _, err := e.commit(abs, cur, assoc); err != nil {
			return nil, err
		}
	}
	return impact, nil
}

// ImpactedFromPatch returns the tests affected by a unified diff applied to
// the workspace at root. Deleted files are resolved through the latest
// snapshot.
func (e *Engine) ImpactedFromPatch(ctx context.Context, root string, patch []byte) (*Impact, error) {
	abs, err := absRoot(root)
	if err != nil {
		return nil, err
	}
	old, err := e.previous(abs)
	if err != nil {
		return nil, err
	}
	assoc, err := e.analyzer.WorkspaceAssociations(ctx, abs)
	if err != nil {
		return nil, err
	}
	return e.analyzer.ImpactFromPatch(ctx, abs, patch, old, assoc)
}
