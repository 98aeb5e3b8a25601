package testlens

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jward/testlens/internal/metrics"
)

// HashDirectory hashes every Python file under root. Files are hashed
// concurrently; a file that fails to read or parse is logged and left out.
func (a *Analyzer) HashDirectory(ctx context.Context, root string) (WorkspaceHash, error) {
	defer metrics.ObserveSince("hash_directory", time.Now())

	paths, err := a.ListPythonFiles(root)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out = make(WorkspaceHash, len(paths))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fh, err := a.HashFile(gctx, filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				if !IsSourceError(err) {
					return err
				}
				a.logger.WithFields(logrus.Fields{"path": rel, "error": err}).Warn("skipping file that failed to hash")
				return nil
			}
			mu.Lock()
			out[rel] = fh
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("testlens: hash %s: %w", root, err)
	}
	return out, nil
}

// WorkspaceAssociations runs the association pass over every test file under
// root and merges the results. Test names are prefixed with the file's
// relative path, as in "tests/test_api.py::test_get". The first failing file
// aborts the run.
func (a *Analyzer) WorkspaceAssociations(ctx context.Context, root string) (AssociationMap, error) {
	defer metrics.ObserveSince("workspace_associations", time.Now())

	paths, err := a.ListPythonFiles(root)
	if err != nil {
		return nil, err
	}

	type fileResult struct {
		rel   string
		assoc AssociationMap
	}
	var (
		mu      sync.Mutex
		results []fileResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, rel := range paths {
		if !a.IsTestFile(rel) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			assoc, err := a.Associations(gctx, filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
			mu.Lock()
			results = append(results, fileResult{rel: rel, assoc: assoc})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("testlens: associations %s: %w", root, err)
	}

	merged := make(AssociationMap)
	for _, r := range results {
		merged.Merge(r.assoc, r.rel+"::")
	}
	return merged, nil
}
