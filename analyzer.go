package testlens

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/jward/testlens/internal/analysis"
	"github.com/jward/testlens/internal/metrics"
	"github.com/jward/testlens/internal/pyast"
)

// DefaultTestFilePatterns match the basenames pytest collects by default.
var DefaultTestFilePatterns = []string{"test_*.py", "*_test.py"}

// Analyzer runs the per-file passes (definitions, test profiles and import
// associations) and the workspace operations built on them. An Analyzer is
// safe for concurrent use.
type Analyzer struct {
	parser        *pyast.Parser
	logger        logrus.FieldLogger
	collector     analysis.Collector
	strictImports bool

	testFiles []glob.Glob
	exclude   []glob.Glob
	workers   int
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithLogger sets the logger used for warnings about skipped files and masked
// import failures.
func WithLogger(l logrus.FieldLogger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithParser replaces the default parser.
func WithParser(p *pyast.Parser) AnalyzerOption {
	return func(a *Analyzer) {
		if p != nil {
			a.parser = p
		}
	}
}

// WithTestPrefix sets the name prefix that marks a function as a test.
func WithTestPrefix(prefix string) AnalyzerOption {
	return func(a *Analyzer) {
		a.collector.Prefix = prefix
	}
}

// WithNesting selects how nested function definitions affect the current test.
func WithNesting(mode NestingMode) AnalyzerOption {
	return func(a *Analyzer) {
		a.collector.Nesting = mode
	}
}

// WithFixtureResolver sets the resolver that computes each test's fixtures.
func WithFixtureResolver(r FixtureResolver) AnalyzerOption {
	return func(a *Analyzer) {
		a.collector.Resolver = r
	}
}

// WithStrictImports makes association runs report import scan failures
// without first masking them as an empty import set.
func WithStrictImports(strict bool) AnalyzerOption {
	return func(a *Analyzer) {
		a.strictImports = strict
	}
}

// WithTestFilePatterns sets the basename globs that classify test files.
// Invalid patterns are ignored; use CompilePatterns to validate them first.
func WithTestFilePatterns(patterns ...string) AnalyzerOption {
	return func(a *Analyzer) {
		if gs, err := CompilePatterns(patterns); err == nil && len(gs) > 0 {
			a.testFiles = gs
		}
	}
}

// WithExclude sets globs for files and directories skipped by workspace
// walks. A pattern matches either the slash-separated path relative to the
// root or the basename.
func WithExclude(patterns ...string) AnalyzerOption {
	return func(a *Analyzer) {
		if gs, err := CompilePatterns(patterns); err == nil {
			a.exclude = gs
		}
	}
}

// WithWorkers bounds the number of files analyzed concurrently.
func WithWorkers(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// CompilePatterns compiles glob patterns, failing on the first invalid one.
func CompilePatterns(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("testlens: compile pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// NewAnalyzer creates an Analyzer. Without options it uses the test_ prefix,
// flat nesting, parameter fixtures and compatible import scanning.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	discard.SetLevel(logrus.WarnLevel)

	testFiles, _ := CompilePatterns(DefaultTestFilePatterns)
	a := &Analyzer{
		parser:    pyast.NewParser(),
		logger:    discard,
		collector: analysis.Collector{Resolver: analysis.ParameterResolver{}},
		testFiles: testFiles,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsTestName reports whether a bare function name marks a test.
func (a *Analyzer) IsTestName(name string) bool {
	return a.collector.IsTest(name)
}

// index parses one file or source and builds its parent index, recording the
// attempt under mode.
func (a *Analyzer) index(mode string, parse func() (*pyast.Tree, error)) (*analysis.ParentIndex, error) {
	metrics.FilesAnalyzed.WithLabelValues(mode).Inc()
	tree, err := parse()
	if err != nil {
		metrics.ParseFailures.WithLabelValues(mode).Inc()
		return nil, err
	}
	idx, err := analysis.BuildParentIndex(tree)
	if err != nil {
		return nil, fmt.Errorf("testlens: %s: %w", mode, err)
	}
	return idx, nil
}

func (a *Analyzer) parseFile(ctx context.Context, path string) func() (*pyast.Tree, error) {
	return func() (*pyast.Tree, error) { return a.parser.ParseFile(ctx, path) }
}

func (a *Analyzer) parseSource(ctx context.Context, src []byte) func() (*pyast.Tree, error) {
	return func() (*pyast.Tree, error) { return a.parser.Parse(ctx, src) }
}

// Definitions extracts every function and method definition of the file at
// path, keyed by qualified name.
func (a *Analyzer) Definitions(ctx context.Context, path string) (map[string]*Definition, error) {
	return a.definitions(a.index(metrics.ModeDefinitions, a.parseFile(ctx, path)))
}

// DefinitionsSource is Definitions over in-memory source.
func (a *Analyzer) DefinitionsSource(ctx context.Context, src []byte) (map[string]*Definition, error) {
	return a.definitions(a.index(metrics.ModeDefinitions, a.parseSource(ctx, src)))
}

func (a *Analyzer) definitions(idx *analysis.ParentIndex, err error) (map[string]*Definition, error) {
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveSince(metrics.ModeDefinitions, time.Now())
	return analysis.ExtractDefinitions(idx), nil
}

// TestProfiles returns the calls and fixtures of every test in the file at
// path, keyed by qualified test name.
func (a *Analyzer) TestProfiles(ctx context.Context, path string) (map[string]*TestProfile, error) {
	return a.profiles(ctx, a.index(metrics.ModeProfile, a.parseFile(ctx, path)))
}

// TestProfilesSource is TestProfiles over in-memory source.
func (a *Analyzer) TestProfilesSource(ctx context.Context, src []byte) (map[string]*TestProfile, error) {
	return a.profiles(ctx, a.index(metrics.ModeProfile, a.parseSource(ctx, src)))
}

func (a *Analyzer) profiles(ctx context.Context, idx *analysis.ParentIndex, err error) (map[string]*TestProfile, error) {
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveSince(metrics.ModeProfile, time.Now())
	profiles, err := a.collector.Collect(ctx, idx)
	if err != nil {
		return nil, fmt.Errorf("testlens: collect tests: %w", err)
	}
	return profiles, nil
}

// Associations maps every symbol the file at path imports with a
// from-import to the tests in that file that call it.
func (a *Analyzer) Associations(ctx context.Context, path string) (AssociationMap, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: associations requires a file path", ErrInvalidArguments)
	}
	return a.associations(ctx, path, a.parseFile(ctx, path))
}

// AssociationsSource is Associations over in-memory source.
func (a *Analyzer) AssociationsSource(ctx context.Context, src []byte) (AssociationMap, error) {
	return a.associations(ctx, "", a.parseSource(ctx, src))
}

// associations shares one parse between the import scan and the collector.
// A parse failure therefore always fails the call; outside strict mode the
// masked import failure is still logged and counted.
func (a *Analyzer) associations(ctx context.Context, path string, parse func() (*pyast.Tree, error)) (AssociationMap, error) {
	idx, err := a.index(metrics.ModeAssociations, parse)
	if err != nil {
		var se *SyntaxError
		if !a.strictImports && errors.As(err, &se) {
			analysis.ImportScan{Err: err}.CompatLogged(a.logger, path)
			metrics.MaskedImportFailures.Inc()
		}
		return nil, err
	}
	defer metrics.ObserveSince(metrics.ModeAssociations, time.Now())

	imports := analysis.ScanImports(idx.Tree())
	profiles, err := a.collector.Collect(ctx, idx)
	if err != nil {
		return nil, fmt.Errorf("testlens: collect tests: %w", err)
	}
	return analysis.Associate(profiles, imports), nil
}
