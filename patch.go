package testlens

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// DiffFromPatch builds a FilesDiff from a unified diff against the current
// files under root. Functions whose lines the patch touches count as changed.
// previous supplies the functions of files the patch deletes and of
// functions it removes from changed files; it may be nil.
func (a *Analyzer) DiffFromPatch(ctx context.Context, root string, patch []byte, previous WorkspaceHash) (FilesDiff, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return FilesDiff{}, fmt.Errorf("testlens: parse patch: %w", err)
	}

	d := FilesDiff{Added: WorkspaceHash{}, Deleted: WorkspaceHash{}}
	for _, fd := range fileDiffs {
		oldPath := patchPath(fd.OrigName)
		newPath := patchPath(fd.NewName)

		if oldPath != "" && oldPath != newPath && pythonPatchPath(oldPath) {
			d.Deleted[oldPath] = a.previousFile(previous, oldPath)
		}
		if newPath == "" || !pythonPatchPath(newPath) || a.skippedPath(newPath) {
			continue
		}

		fh, err := a.HashFile(ctx, filepath.Join(root, filepath.FromSlash(newPath)))
		if err != nil {
			if IsSourceError(err) {
				a.logger.WithFields(logrus.Fields{"path": newPath, "error": err}).Warn("skipping patched file that failed to hash")
				continue
			}
			return FilesDiff{}, err
		}
		if oldPath == "" || oldPath != newPath {
			d.Added[newPath] = fh
			continue
		}

		lines := changedLines(fd.Hunks)
		changed := make(map[string]FunctionHash)
		for name, fn := range fh.Functions {
			if touches(fn, lines) {
				changed[name] = fn
			}
		}
		if prev, ok := previous[newPath]; ok {
			for name, fn := range fh.Functions {
				if old, ok := prev.Functions[name]; !ok || old.Hash != fn.Hash {
					changed[name] = fn
				}
			}
			vanished := make(map[string]FunctionHash)
			for name, fn := range prev.Functions {
				if _, ok := fh.Functions[name]; !ok {
					vanished[name] = fn
				}
			}
			if len(vanished) > 0 {
				d.Deleted[newPath] = &FileHash{Hash: prev.Hash, IsTestFile: prev.IsTestFile, Functions: vanished}
			}
		}
		if len(changed) > 0 {
			d.Added[newPath] = &FileHash{Hash: fh.Hash, IsTestFile: fh.IsTestFile, Functions: changed}
		}
	}
	return d, nil
}

// ImpactFromPatch selects the tests affected by a unified diff.
func (a *Analyzer) ImpactFromPatch(ctx context.Context, root string, patch []byte, previous WorkspaceHash, assoc AssociationMap) (*Impact, error) {
	d, err := a.DiffFromPatch(ctx, root, patch, previous)
	if err != nil {
		return nil, err
	}
	return a.ImpactedTests(d, assoc), nil
}

func (a *Analyzer) previousFile(previous WorkspaceHash, path string) *FileHash {
	if fh, ok := previous[path]; ok {
		return fh
	}
	return &FileHash{IsTestFile: a.IsTestFile(path), Functions: map[string]FunctionHash{}}
}

// patchPath strips the a/ or b/ prefix git adds to diff names. /dev/null
// becomes "".
func patchPath(name string) string {
	name = strings.TrimSpace(name)
	if name == devNull || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		name = name[2:]
	}
	return filepath.ToSlash(filepath.Clean(name))
}

func pythonPatchPath(p string) bool {
	return strings.HasSuffix(p, ".py")
}

// changedLines returns the new-side line numbers a patch adds, plus the line
// following each removal so that pure deletions still touch the function they
// happened in.
func changedLines(hunks []*diff.Hunk) map[int]bool {
	lines := make(map[int]bool)
	for _, h := range hunks {
		line := int(h.NewStartLine)
		body := bytes.Split(bytes.TrimSuffix(h.Body, []byte("\n")), []byte("\n"))
		for _, raw := range body {
			if len(raw) == 0 {
				line++ // blank context line with its leading space stripped
				continue
			}
			switch raw[0] {
			case '+':
				lines[line] = true
				line++
			case '-':
				lines[line] = true
			case '\\':
			default:
				line++
			}
		}
	}
	return lines
}

func touches(fn FunctionHash, lines map[int]bool) bool {
	for l := fn.StartLine; l <= fn.EndLine; l++ {
		if lines[l] {
			return true
		}
	}
	return false
}
