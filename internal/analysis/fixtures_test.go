package analysis

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/testlens/internal/runtime"
)

func testFunctionInfo(t *testing.T, src, name string) FunctionInfo {
	t.Helper()
	idx := newTestIndex(t, src)
	return newFunctionInfo(idx, findDef(t, idx, name))
}

func TestFunctionInfo_Params(t *testing.T) {
	fn := testFunctionInfo(t, "def test_x(a, /, b: int, *args, c, d=1, e: str = 'x', **kw):\n    pass\n", "test_x")

	params := fn.Params()
	require.Len(t, params, 7)

	want := []struct {
		name string
		kind ParamKind
	}{
		{"a", ParamPositionalOnly},
		{"b", ParamPositionalOrKeyword},
		{"args", ParamVarPositional},
		{"c", ParamKeywordOnly},
		{"d", ParamKeywordOnly},
		{"e", ParamKeywordOnly},
		{"kw", ParamVarKeyword},
	}
	for i, w := range want {
		assert.Equal(t, w.name, params[i].Name, "param %d", i)
		assert.Equal(t, w.kind, params[i].Kind, "param %s", w.name)
	}
	assert.Equal(t, "int", params[1].Annotation)
	assert.True(t, params[4].HasDefault)
	assert.Equal(t, "str", params[5].Annotation)
}

func TestFunctionInfo_KeywordSeparator(t *testing.T) {
	fn := testFunctionInfo(t, "def test_x(a, *, b):\n    pass\n", "test_x")
	params := fn.Params()
	require.Len(t, params, 2)
	assert.Equal(t, ParamPositionalOrKeyword, params[0].Kind)
	assert.Equal(t, ParamKeywordOnly, params[1].Kind)
}

func TestParameterResolver(t *testing.T) {
	fn := testFunctionInfo(t, "def test_x(self, db, *args, flag=False, **kw):\n    pass\n", "test_x")
	got, err := ParameterResolver{}.ResolveFixtures(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"self", "db", "flag"}, got)

	empty := testFunctionInfo(t, "def test_y():\n    pass\n", "test_y")
	got, err = ParameterResolver{}.ResolveFixtures(context.Background(), empty)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}

func TestDecoratorResolver(t *testing.T) {
	src := `
@pytest.mark.usefixtures("db", 'cache')
@pytest.mark.parametrize("x", [1])
@usefixtures(f"dynamic", "tmp")
def test_x(x):
    pass
`
	fn := testFunctionInfo(t, src, "test_x")
	got, err := DecoratorResolver{}.ResolveFixtures(context.Background(), fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "cache", "tmp"}, got)
	assert.Equal(t, []string{`pytest.mark.usefixtures("db", "cache")`, `pytest.mark.parametrize("x", [1])`, `usefixtures(f"dynamic", "tmp")`}, fn.DecoratorTexts())
}

func TestAnnotationResolver(t *testing.T) {
	src := `
x = 1
# fixtures: db, client
# unrelated note
# fixtures: cache
@decorated
def test_x():
    pass

# fixtures: lost

def test_y():
    pass
`
	got, err := AnnotationResolver{}.ResolveFixtures(context.Background(), testFunctionInfo(t, src, "test_x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "client", "cache"}, got)

	got, err = AnnotationResolver{}.ResolveFixtures(context.Background(), testFunctionInfo(t, src, "test_y"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChainResolver(t *testing.T) {
	src := `
# fixtures: db, extra
@pytest.mark.usefixtures("db")
def test_x(db, client):
    pass
`
	chain := ChainResolver{ParameterResolver{}, DecoratorResolver{}, AnnotationResolver{}}
	got, err := chain.ResolveFixtures(context.Background(), testFunctionInfo(t, src, "test_x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "client", "extra"}, got)
}

func TestScriptResolver(t *testing.T) {
	script := `
out := []
for i := 0; i < len(params); i++ {
    if params[i] != "self" {
        out.append(params[i])
    }
}
if qualified_name == "TestA::test_x" {
    out.append("class_scoped")
}
out
`
	rt := runtime.NewRuntime("", runtime.WithRuntimeFS(fstest.MapFS{
		"fixtures.risor": &fstest.MapFile{Data: []byte(script)},
	}))
	resolver := &ScriptResolver{Runtime: rt, Script: "fixtures.risor"}

	src := "class TestA:\n    def test_x(self, db):\n        pass\n"
	got, err := resolver.ResolveFixtures(context.Background(), testFunctionInfo(t, src, "test_x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "class_scoped"}, got)
}

func TestScriptResolver_BadResult(t *testing.T) {
	rt := runtime.NewRuntime("", runtime.WithRuntimeFS(fstest.MapFS{
		"bad.risor": &fstest.MapFile{Data: []byte(`42`)},
	}))
	resolver := &ScriptResolver{Runtime: rt, Script: "bad.risor"}
	_, err := resolver.ResolveFixtures(context.Background(), testFunctionInfo(t, "def test_x():\n    pass\n", "test_x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test_x")
}

func TestStringLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`"db"`, "db", true},
		{`'db'`, "db", true},
		{`"""db"""`, "db", true},
		{`r"a\b"`, `a\b`, true},
		{`u'x'`, "x", true},
		{`f"x"`, "", false},
		{`b"x"`, "", false},
		{`"a\nb"`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := StringLiteral(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolverByName(t *testing.T) {
	for _, name := range []string{"parameters", "decorators", "annotations"} {
		r, err := ResolverByName(name)
		require.NoError(t, err)
		assert.NotNil(t, r)
	}
	_, err := ResolverByName("magic")
	require.Error(t, err)
}
