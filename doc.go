// Package testlens performs static test-impact analysis for Python test
// suites built on tree-sitter. It answers "which tests must rerun if this
// function changes?" without executing any code.
//
// # Passes
//
// Every pass parses one file and builds a parent index over its syntax tree:
//
//  1. Definitions: every function and method keyed by qualified name
//     ("Class::method" or "function") with a canonical, formatting-insensitive
//     source text and its SHA-256 hash.
//
//  2. Test profiles: for each test function (default prefix "test_"), the
//     bare names it calls and the fixtures it requests.
//
//  3. Associations: for each symbol bound by a top-level from-import, the
//     tests in the same file that call it.
//
// # Usage
//
// Run a single pass with an Analyzer:
//
//	a := testlens.NewAnalyzer()
//	assoc, err := a.Associations(ctx, "tests/test_api.py")
//
// Track a workspace over time with an Engine:
//
//	e, err := testlens.New(".testlens/testlens.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	_, err = e.Snapshot(ctx, ".")
//	impact, err := e.Impacted(ctx, ".", true)
//	for _, id := range impact.RunIDs() { ... }
//
// # Limitations
//
// Only calls through bare identifiers are attributed. Attribute calls
// (obj.method()), plain "import m" statements, aliases introduced by
// assignment and call chains longer than one hop are not tracked.
package testlens
