package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDefinitions_QualifiedNames(t *testing.T) {
	src := `
def foo():
    pass

class Bar:
    def foo(self):
        pass

    async def fetch(self):
        await foo()

    def outer(self):
        def helper():
            pass
        return helper
`
	defs := ExtractDefinitions(newTestIndex(t, src))

	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	assert.ElementsMatch(t, []string{"foo", "Bar::foo", "Bar::fetch", "Bar::outer", "Bar::helper"}, names)

	method := defs["Bar::foo"]
	require.NotNil(t, method)
	assert.Equal(t, "foo", method.Name)
	assert.Equal(t, "Bar", method.EnclosingClass)
	assert.Equal(t, "def foo(self):\n    pass", method.Source)
	assert.Equal(t, 6, method.StartLine)
	assert.Equal(t, 7, method.EndLine)
	assert.Equal(t, HashText(method.Source), method.Hash)

	assert.Empty(t, defs["foo"].EnclosingClass)
	assert.True(t, strings.HasPrefix(defs["Bar::fetch"].Source, "async def fetch(self):"))
}

func TestExtractDefinitions_LastWriteWins(t *testing.T) {
	src := "def f():\n    return 1\n\ndef f():\n    return 2\n"
	defs := ExtractDefinitions(newTestIndex(t, src))

	require.Len(t, defs, 1)
	assert.Equal(t, "def f():\n    return 2", defs["f"].Source)
	assert.Equal(t, 4, defs["f"].StartLine)
}

func TestExtractDefinitions_DeeperDefinitionWins(t *testing.T) {
	src := "def foo():\n    def inner(): return 1\n\ndef inner(): return 2\n"
	defs := ExtractDefinitions(newTestIndex(t, src))

	require.Len(t, defs, 2)
	assert.Equal(t, "def inner():\n    return 1", defs["inner"].Source)
	assert.Equal(t, 2, defs["inner"].StartLine)
}

func TestStatementDepth(t *testing.T) {
	src := `
def top():
    pass

@deco
def decorated():
    pass

class C:
    def method(self):
        def nested():
            pass

if flag:
    def guarded():
        pass
else:
    def fallback():
        pass
`
	idx := newTestIndex(t, src)
	for name, want := range map[string]int{
		"top": 0, "decorated": 0, "method": 1, "nested": 2, "guarded": 1, "fallback": 1,
	} {
		assert.Equal(t, want, statementDepth(idx, findDef(t, idx, name)), name)
	}
}

func TestExtractDefinitions_FormattingInsensitive(t *testing.T) {
	plain := `
def compute(a, b=2):
    total = add(a, b)
    return total
`
	reformatted := `
def compute(a,
            b = 2,):   # trailing comma
    # running sum
    total = add(a,
                b)


    return total
`
	a := ExtractDefinitions(newTestIndex(t, plain))
	b := ExtractDefinitions(newTestIndex(t, reformatted))
	assert.Equal(t, a["compute"].Source, b["compute"].Source)
	assert.Equal(t, a["compute"].Hash, b["compute"].Hash)

	again := ExtractDefinitions(newTestIndex(t, plain))
	assert.Equal(t, a, again)
}

func TestExtractDefinitions_FormattingInsensitiveExpressions(t *testing.T) {
	pairs := []struct {
		name string
		a, b string
	}{
		{"quote style", "def f():\n    return 'a'\n", "def f():\n    return \"a\"\n"},
		{"return parentheses", "def f(x):\n    return x\n", "def f(x):\n    return (x)\n"},
		{"not parentheses", "def f(x):\n    return not x\n", "def f(x):\n    return not(x)\n"},
		{"conditional parentheses", "def f(a):\n    return 1 if a else 2\n", "def f(a):\n    return (1 if a else 2)\n"},
		{"splat parentheses", "def f(a):\n    print(*a)\n", "def f(a):\n    print(*(a))\n"},
		{"f-string spacing", "def f(x):\n    return f'{x}'\n", "def f(x):\n    return f\"{ x }\"\n"},
	}
	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := ExtractDefinitions(newTestIndex(t, tt.a))
			b := ExtractDefinitions(newTestIndex(t, tt.b))
			require.Contains(t, a, "f")
			require.Contains(t, b, "f")
			assert.Equal(t, a["f"].Source, b["f"].Source)
			assert.Equal(t, a["f"].Hash, b["f"].Hash)
		})
	}
}

func TestExtractDefinitions_Locality(t *testing.T) {
	before := "def a():\n    return 1\n\ndef b():\n    return 2\n"
	after := "def a():\n    return 1 + 41\n\ndef b():\n    return 2\n"

	d1 := ExtractDefinitions(newTestIndex(t, before))
	d2 := ExtractDefinitions(newTestIndex(t, after))
	assert.NotEqual(t, d1["a"].Hash, d2["a"].Hash)
	assert.Equal(t, d1["b"].Source, d2["b"].Source)
}

func TestExtractDefinitions_Decorators(t *testing.T) {
	src := "@pytest.fixture\ndef db():\n    return connect()\n"
	defs := ExtractDefinitions(newTestIndex(t, src))
	assert.Equal(t, "@pytest.fixture\ndef db():\n    return connect()", defs["db"].Source)
	assert.Equal(t, 1, defs["db"].StartLine)
}

func TestExtractDefinitions_NoFunctions(t *testing.T) {
	defs := ExtractDefinitions(newTestIndex(t, "x = 1\n"))
	assert.Empty(t, defs)
	assert.Empty(t, SourceMap(defs))
}

func TestDefinitionContains(t *testing.T) {
	d := &Definition{StartLine: 3, EndLine: 5}
	assert.False(t, d.Contains(2))
	assert.True(t, d.Contains(3))
	assert.True(t, d.Contains(5))
	assert.False(t, d.Contains(6))
}
