package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string, opts Options) <-chan []string {
	t.Helper()
	changes := make(chan []string, 10)
	w, err := NewWatcher(opts, func(paths []string) {
		changes <- paths
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, w.Watch([]string{dir}))
	return changes
}

func TestWatcher_DebouncesPythonChanges(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, Options{Debounce: 50 * time.Millisecond})

	a := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(a, []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("x = 2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	select {
	case paths := <-changes:
		assert.Equal(t, []string{a}, paths)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change batch")
	}
}

func TestWatcher_ExcludedFile(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, Options{
		Debounce:     30 * time.Millisecond,
		ExcludeFiles: []string{"conftest.py"},
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "conftest.py"), []byte("x = 1\n"), 0o644))
	kept := filepath.Join(dir, "kept.py")
	require.NoError(t, os.WriteFile(kept, []byte("x = 1\n"), 0o644))

	select {
	case paths := <-changes:
		assert.Equal(t, []string{kept}, paths)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change batch")
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, Options{Debounce: 100 * time.Millisecond})

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(50 * time.Millisecond)
	mod := filepath.Join(sub, "mod.py")
	require.NoError(t, os.WriteFile(mod, []byte("x = 1\n"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case paths := <-changes:
			if assert.NotEmpty(t, paths) && contains(paths, mod) {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for change in new directory")
		}
	}
}

func TestShouldExcludeDir(t *testing.T) {
	w, err := NewWatcher(Options{ExcludeDirs: DefaultExcludeDirs}, func([]string) {})
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.shouldExcludeDir("/repo/.git"))
	assert.True(t, w.shouldExcludeDir("/repo/venv"))
	assert.True(t, w.shouldExcludeDir("/repo/pkg/__pycache__"))
	assert.False(t, w.shouldExcludeDir("/repo/pkg"))
}

func TestNewWatcher_BadGlob(t *testing.T) {
	_, err := NewWatcher(Options{ExcludeFiles: []string{"[unclosed"}}, func([]string) {})
	require.Error(t, err)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
