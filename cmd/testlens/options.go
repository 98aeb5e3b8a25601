package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jward/testlens"
	"github.com/jward/testlens/internal/analysis"
	"github.com/jward/testlens/internal/runtime"
	"github.com/jward/testlens/scripts"
)

// newAnalyzer builds an Analyzer from the loaded configuration.
func (a *app) newAnalyzer() (*testlens.Analyzer, error) {
	nesting, err := analysis.ParseNestingMode(a.cfg.Analysis.NestedTests)
	if err != nil {
		return nil, err
	}
	resolver, err := a.fixtureResolver()
	if err != nil {
		return nil, err
	}
	return testlens.NewAnalyzer(
		testlens.WithLogger(a.logger),
		testlens.WithTestPrefix(a.cfg.Analysis.TestPrefix),
		testlens.WithNesting(nesting),
		testlens.WithStrictImports(a.cfg.Analysis.StrictImports),
		testlens.WithFixtureResolver(resolver),
		testlens.WithTestFilePatterns(a.cfg.Workspace.TestFiles...),
		testlens.WithExclude(a.cfg.Workspace.Exclude...),
		testlens.WithWorkers(a.cfg.Workspace.Workers),
	), nil
}

// fixtureResolver chains the configured resolvers in order.
func (a *app) fixtureResolver() (testlens.FixtureResolver, error) {
	var chain analysis.ChainResolver
	for _, name := range a.cfg.Fixtures.Resolvers {
		switch name {
		case "pytest":
			rt := runtime.NewRuntime("", runtime.WithRuntimeFS(scripts.FS), runtime.WithLogger(a.logger))
			chain = append(chain, &analysis.ScriptResolver{Runtime: rt, Script: scripts.PytestFixtures})
		case "script":
			path, err := filepath.Abs(a.cfg.Fixtures.Script)
			if err != nil {
				return nil, err
			}
			rt := runtime.NewRuntime(filepath.Dir(path), runtime.WithLogger(a.logger))
			chain = append(chain, &analysis.ScriptResolver{Runtime: rt, Script: filepath.Base(path)})
		default:
			r, err := analysis.ResolverByName(name)
			if err != nil {
				return nil, err
			}
			chain = append(chain, r)
		}
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// newEngine opens the snapshot database for the repository containing
// targetDir.
func (a *app) newEngine(targetDir string) (*testlens.Engine, error) {
	analyzer, err := a.newAnalyzer()
	if err != nil {
		return nil, err
	}
	dbPath := a.resolveDBPath(findRepoRoot(targetDir))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	engine, err := testlens.New(dbPath, testlens.WithAnalyzer(analyzer), testlens.WithKeep(a.cfg.Store.Keep))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	a.logger.WithField("db", dbPath).Debug("opened snapshot store")
	return engine, nil
}
