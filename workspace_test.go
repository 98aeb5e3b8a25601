package testlens

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFileHash computes the same SHA256 hex hash the analyzer uses.
func testFileHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

func TestHashFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := "def add(a, b):\n    return a + b\n\nclass C:\n    def m(self):\n        pass\n"
	path := writePyFile(t, dir, "test_mod.py", src)

	fh, err := NewAnalyzer().HashFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, testFileHash([]byte(src)), fh.Hash)
	assert.True(t, fh.IsTestFile)
	assert.ElementsMatch(t, []string{"add", "C::m"}, mapKeys(fh.Functions))
	assert.Equal(t, 1, fh.Functions["add"].StartLine)
	assert.Equal(t, 2, fh.Functions["add"].EndLine)
}

func TestHashFile_FormattingOnlyChangeKeepsFunctionHash(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := NewAnalyzer()
	first := writePyFile(t, dir, "a.py", "def f(x, y):\n    return g(x, y)\n")
	second := writePyFile(t, dir, "b.py", "def f(x,\n      y,):\n    # note\n    return g( x, y )\n")

	h1, err := a.HashFile(context.Background(), first)
	require.NoError(t, err)
	h2, err := a.HashFile(context.Background(), second)
	require.NoError(t, err)
	assert.NotEqual(t, h1.Hash, h2.Hash)
	assert.Equal(t, h1.Functions["f"].Hash, h2.Functions["f"].Hash)
}

func TestIsTestFile(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()
	assert.True(t, a.IsTestFile("tests/test_api.py"))
	assert.True(t, a.IsTestFile("api_test.py"))
	assert.False(t, a.IsTestFile("tests/conftest.py"))
	assert.False(t, a.IsTestFile("testing.py"))

	custom := NewAnalyzer(WithTestFilePatterns("*_spec.py"))
	assert.True(t, custom.IsTestFile("api_spec.py"))
	assert.False(t, custom.IsTestFile("test_api.py"))
}

func TestHashDirectory_SkipsAndExcludes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePyFile(t, dir, "pkg/mod.py", "def f():\n    pass\n")
	writePyFile(t, dir, "pkg/test_mod.py", "def test_f():\n    pass\n")
	writePyFile(t, dir, "pkg/broken.py", "def f(:\n")
	writePyFile(t, dir, "venv/lib.py", "def f():\n    pass\n")
	writePyFile(t, dir, ".venv/lib.py", "def f():\n    pass\n")
	writePyFile(t, dir, "pkg/__pycache__/mod.py", "def f():\n    pass\n")
	writePyFile(t, dir, "node_modules/x.py", "def f():\n    pass\n")
	writePyFile(t, dir, "build/gen.py", "def f():\n    pass\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi"), 0o644))

	a := NewAnalyzer(WithExclude("build"), WithWorkers(2))
	hashes, err := a.HashDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/mod.py", "pkg/test_mod.py"}, hashes.Paths())
	assert.True(t, hashes["pkg/test_mod.py"].IsTestFile)
	assert.False(t, hashes["pkg/mod.py"].IsTestFile)
}

func TestHashDirectory_Canceled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePyFile(t, dir, "mod.py", "def f():\n    pass\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAnalyzer().HashDirectory(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiff(t *testing.T) {
	t.Parallel()
	old := WorkspaceHash{
		"a.py": {Hash: "a1", Functions: map[string]FunctionHash{
			"keep": {Hash: "k"}, "edit": {Hash: "e1"}, "gone": {Hash: "g"},
		}},
		"b.py":      {Hash: "b1", Functions: map[string]FunctionHash{"f": {Hash: "f"}}},
		"same.py":   {Hash: "s", Functions: map[string]FunctionHash{"f": {Hash: "f"}}},
		"format.py": {Hash: "x1", Functions: map[string]FunctionHash{"f": {Hash: "f"}}},
	}
	cur := WorkspaceHash{
		"a.py": {Hash: "a2", Functions: map[string]FunctionHash{
			"keep": {Hash: "k"}, "edit": {Hash: "e2"}, "new": {Hash: "n"},
		}},
		"same.py":   {Hash: "s", Functions: map[string]FunctionHash{"f": {Hash: "f"}}},
		"format.py": {Hash: "x2", Functions: map[string]FunctionHash{"f": {Hash: "f"}}},
		"c.py":      {Hash: "c1", Functions: map[string]FunctionHash{"g": {Hash: "g"}}},
	}

	d := Diff(old, cur)
	assert.ElementsMatch(t, []string{"a.py", "c.py"}, d.Added.Paths())
	assert.ElementsMatch(t, []string{"edit", "new"}, mapKeys(d.Added["a.py"].Functions))
	assert.Equal(t, "a2", d.Added["a.py"].Hash)
	assert.Same(t, cur["c.py"], d.Added["c.py"])

	assert.ElementsMatch(t, []string{"a.py", "b.py"}, d.Deleted.Paths())
	assert.Equal(t, []string{"gone"}, mapKeys(d.Deleted["a.py"].Functions))
	assert.Same(t, old["b.py"], d.Deleted["b.py"])
	assert.False(t, d.Empty())

	assert.True(t, Diff(cur, cur).Empty())
}
