package testlens

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/testlens/internal/analysis"
	"github.com/jward/testlens/internal/metrics"
	"github.com/jward/testlens/internal/pyast"
)

// FunctionHash is the hash of one definition's canonical text.
type FunctionHash struct {
	Hash      string `json:"hash" yaml:"hash"`
	StartLine int    `json:"start_line,omitempty" yaml:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty" yaml:"end_line,omitempty"`
}

// FileHash is the content hash of a Python file together with the hashes of
// its definitions.
type FileHash struct {
	Hash       string                  `json:"hash" yaml:"hash"`
	IsTestFile bool                    `json:"is_test_file" yaml:"is_test_file"`
	Functions  map[string]FunctionHash `json:"functions" yaml:"functions"`
}

// WorkspaceHash maps slash-separated paths relative to the workspace root to
// their FileHash.
type WorkspaceHash map[string]*FileHash

// Fingerprints returns the file hash of every path.
func (w WorkspaceHash) Fingerprints() map[string]string {
	out := make(map[string]string, len(w))
	for p, fh := range w {
		out[p] = fh.Hash
	}
	return out
}

// Paths returns the paths in sorted order.
func (w WorkspaceHash) Paths() []string {
	paths := make([]string, 0, len(w))
	for p := range w {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FilesDiff is the difference between two workspace hashes. Added holds new
// files and the new or changed functions of changed files; Deleted holds
// removed files and the functions that disappeared from changed files.
type FilesDiff struct {
	Added   WorkspaceHash `json:"added" yaml:"added"`
	Deleted WorkspaceHash `json:"deleted" yaml:"deleted"`
}

// Empty reports whether the diff records no change.
func (d FilesDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Deleted) == 0
}

// IsTestFile reports whether the basename of path matches a test file
// pattern.
func (a *Analyzer) IsTestFile(path string) bool {
	base := filepath.Base(path)
	for _, g := range a.testFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// HashFile hashes the bytes of the Python file at path and the canonical text
// of each of its definitions.
func (a *Analyzer) HashFile(ctx context.Context, path string) (*FileHash, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	idx, err := a.index(metrics.ModeHash, a.parseSource(ctx, src))
	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.Path = path
		}
		return nil, err
	}

	defs := analysis.ExtractDefinitions(idx)
	fh := &FileHash{
		Hash:       fmt.Sprintf("%x", sha256.Sum256(src)),
		IsTestFile: a.IsTestFile(path),
		Functions:  make(map[string]FunctionHash, len(defs)),
	}
	for name, d := range defs {
		fh.Functions[name] = FunctionHash{Hash: d.Hash, StartLine: d.StartLine, EndLine: d.EndLine}
	}
	return fh, nil
}

// skipDirs are directory names never descended into, in addition to hidden
// directories.
var skipDirs = map[string]bool{
	"node_modules": true,
	"venv":         true,
	"__pycache__":  true,
}

// ListPythonFiles returns the slash-separated relative paths of the Python
// files under root, sorted. If root is inside a git repository, git ls-files
// is used to respect .gitignore; otherwise the filesystem is walked. Hidden
// directories, virtual environments, __pycache__, node_modules and excluded
// paths are skipped either way.
func (a *Analyzer) ListPythonFiles(root string) ([]string, error) {
	paths, err := a.gitListFiles(root)
	if err != nil {
		paths, err = a.walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (a *Analyzer) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !pyast.IsPythonFile(line) {
			continue
		}
		if a.skippedPath(line) {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(line))); err != nil {
			continue // deleted in the work tree
		}
		paths = append(paths, line)
	}
	return paths, nil
}

func (a *Analyzer) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (skippedDir(d.Name()) || a.excluded(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if pyast.IsPythonFile(path) && !a.excluded(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("testlens: walk %s: %w", root, err)
	}
	return paths, nil
}

func skippedDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

// skippedPath applies the directory rules to every parent of a relative path.
func (a *Analyzer) skippedPath(rel string) bool {
	parts := strings.Split(rel, "/")
	for i, part := range parts[:len(parts)-1] {
		if skippedDir(part) || a.excluded(strings.Join(parts[:i+1], "/")) {
			return true
		}
	}
	return a.excluded(rel)
}

func (a *Analyzer) excluded(rel string) bool {
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	for _, g := range a.exclude {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// Diff compares two workspace hashes. A file whose bytes changed without any
// function change appears in neither side of the result.
func Diff(old, cur WorkspaceHash) FilesDiff {
	d := FilesDiff{Added: WorkspaceHash{}, Deleted: WorkspaceHash{}}

	for path, nf := range cur {
		of, ok := old[path]
		if !ok {
			d.Added[path] = nf
			continue
		}
		if of.Hash == nf.Hash {
			continue
		}

		added := make(map[string]FunctionHash)
		for name, fn := range nf.Functions {
			if prev, ok := of.Functions[name]; !ok || prev.Hash != fn.Hash {
				added[name] = fn
			}
		}
		deleted := make(map[string]FunctionHash)
		for name, fn := range of.Functions {
			if _, ok := nf.Functions[name]; !ok {
				deleted[name] = fn
			}
		}
		if len(added) > 0 {
			d.Added[path] = &FileHash{Hash: nf.Hash, IsTestFile: nf.IsTestFile, Functions: added}
		}
		if len(deleted) > 0 {
			d.Deleted[path] = &FileHash{Hash: of.Hash, IsTestFile: of.IsTestFile, Functions: deleted}
		}
	}

	for path, of := range old {
		if _, ok := cur[path]; !ok {
			d.Deleted[path] = of
		}
	}
	return d
}
