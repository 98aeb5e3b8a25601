package testlens

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// benchPythonSource builds a test module with n tests, each calling a few
// imported helpers and one local function.
func benchPythonSource(n int) []byte {
	var b strings.Builder
	b.WriteString("import pytest\n\nfrom app.helpers import alpha, beta, gamma as g\n\n\n")
	b.WriteString("def local_helper(x):\n    return x\n\n\n")
	for i := range n {
		fmt.Fprintf(&b, "def test_case_%d(db, client):\n", i)
		fmt.Fprintf(&b, "    value = alpha(%d, key=beta([1, 2, 3]))\n", i)
		b.WriteString("    if value:\n        g(value)\n")
		b.WriteString("    client.post(\"/x\", json={\"v\": local_helper(value)})\n\n\n")
	}
	b.WriteString("class TestGroup:\n")
	for i := range n / 4 {
		fmt.Fprintf(&b, "    def test_method_%d(self):\n        assert beta(%d)\n\n", i, i)
	}
	return []byte(b.String())
}

func BenchmarkAnalyzer_Associations(b *testing.B) {
	src := benchPythonSource(200)
	a := NewAnalyzer()
	ctx := context.Background()
	b.ResetTimer()
	for b.Loop() {
		if _, err := a.AssociationsSource(ctx, src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAnalyzer_Definitions(b *testing.B) {
	src := benchPythonSource(200)
	a := NewAnalyzer()
	ctx := context.Background()
	b.ResetTimer()
	for b.Loop() {
		if _, err := a.DefinitionsSource(ctx, src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHashDirectory(b *testing.B) {
	dir := copyFixtureWorkspace(b)
	a := NewAnalyzer()
	ctx := context.Background()
	b.ResetTimer()
	for b.Loop() {
		if _, err := a.HashDirectory(ctx, dir); err != nil {
			b.Fatal(err)
		}
	}
}
