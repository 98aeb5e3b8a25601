package runtime

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/object"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dropSelfScript = `
out := []
for i := 0; i < len(params); i++ {
    p := params[i]
    if p != "self" {
        out.append(p)
    }
}
out
`

func TestRunSource_ReturnsLastExpression(t *testing.T) {
	rt := NewRuntime("")
	obj, err := rt.RunSource(context.Background(), `1 + 1`, nil)
	require.NoError(t, err)
	assert.Equal(t, object.NewInt(2), obj)
}

func TestRunSource_Globals(t *testing.T) {
	rt := NewRuntime("")
	obj, err := rt.RunSource(context.Background(), dropSelfScript, map[string]any{
		"params": []string{"self", "db", "client"},
	})
	require.NoError(t, err)

	got, err := Strings(obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "client"}, got)
}

func TestRunSource_Assert(t *testing.T) {
	rt := NewRuntime("")
	_, err := rt.RunSource(context.Background(), `assert(test_name == "test_a", "wrong name")`, map[string]any{
		"test_name": "test_b",
	})
	require.Error(t, err)
}

func TestRunSource_UnsupportedGlobal(t *testing.T) {
	rt := NewRuntime("")
	_, err := rt.RunSource(context.Background(), `1`, map[string]any{"bad": struct{}{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "global bad")
}

func TestRunStrings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixtures.risor"), []byte(dropSelfScript), 0o644))

	rt := NewRuntime(dir)
	got, err := rt.RunStrings(context.Background(), "fixtures.risor", map[string]any{
		"params": []string{"self"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}

func TestRunStrings_NonListResult(t *testing.T) {
	mapFS := fstest.MapFS{
		"bad.risor": &fstest.MapFile{Data: []byte(`"db"`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))
	_, err := rt.RunStrings(context.Background(), "bad.risor", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected list")
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(t.TempDir())
	_, err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

func TestRunScript_Cached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "once.risor")
	require.NoError(t, os.WriteFile(path, []byte(`["a"]`), 0o644))

	rt := NewRuntime(dir)
	_, err := rt.RunScript(context.Background(), "once.risor", nil)
	require.NoError(t, err)

	// The cached source survives removal of the file.
	require.NoError(t, os.Remove(path))
	got, err := rt.RunStrings(context.Background(), "once.risor", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rt := NewRuntime(dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"fixtures/pytest.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("/fixtures/pytest.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestToObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want object.Object
	}{
		{"string", "x", object.NewString("x")},
		{"bool", true, object.NewBool(true)},
		{"int", 3, object.NewInt(3)},
		{"nil", nil, object.Nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToObject(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrings(t *testing.T) {
	t.Parallel()

	got, err := Strings(StringList([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = Strings(object.Nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Strings(object.NewList([]object.Object{object.NewInt(1)}))
	require.Error(t, err)
}

func TestNewRuntime_DefaultLoggerDiscards(t *testing.T) {
	r := NewRuntime("")
	l, ok := r.logger.(*logrus.Logger)
	require.True(t, ok)
	assert.Equal(t, io.Discard, l.Out)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}
