// Package config loads the optional .testlens.toml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

// FileName is the config file looked up at the repository root.
const FileName = ".testlens.toml"

type Config struct {
	Analysis  Analysis  `toml:"analysis"`
	Fixtures  Fixtures  `toml:"fixtures"`
	Workspace Workspace `toml:"workspace"`
	Store     Store     `toml:"store"`
	Log       Log       `toml:"log"`
	Watch     Watch     `toml:"watch"`
}

type Analysis struct {
	TestPrefix    string `toml:"test_prefix"`
	NestedTests   string `toml:"nested_tests"` // flat or stack
	StrictImports bool   `toml:"strict_imports"`
}

type Fixtures struct {
	Resolvers []string `toml:"resolvers"` // parameters, decorators, annotations, pytest, script
	Script    string   `toml:"script"`    // path to a Risor fixture script
}

type Workspace struct {
	TestFiles []string `toml:"test_files"`
	Exclude   []string `toml:"exclude"`
	Workers   int      `toml:"workers"`
}

type Store struct {
	Path string `toml:"path"`
	Keep int    `toml:"keep"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

type Watch struct {
	Debounce    time.Duration `toml:"debounce"`
	MetricsAddr string        `toml:"metrics_addr"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Analysis: Analysis{
			TestPrefix:  "test_",
			NestedTests: "flat",
		},
		Fixtures: Fixtures{
			Resolvers: []string{"parameters"},
		},
		Workspace: Workspace{
			TestFiles: []string{"test_*.py", "*_test.py"},
			Workers:   runtime.NumCPU(),
		},
		Store: Store{
			Path: filepath.Join(".testlens", "testlens.db"),
			Keep: 5,
		},
		Log: Log{
			Level:  "warn",
			Format: "text",
		},
		Watch: Watch{
			Debounce: 300 * time.Millisecond,
		},
	}
}

// Load decodes the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads FileName from root when it exists and returns the defaults
// otherwise.
func Discover(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, err
	}
	return Load(path)
}

// applyDefaults restores zero values a file may have cleared.
func (c *Config) applyDefaults() {
	d := Defaults()
	if c.Analysis.TestPrefix == "" {
		c.Analysis.TestPrefix = d.Analysis.TestPrefix
	}
	if c.Analysis.NestedTests == "" {
		c.Analysis.NestedTests = d.Analysis.NestedTests
	}
	if len(c.Fixtures.Resolvers) == 0 {
		c.Fixtures.Resolvers = d.Fixtures.Resolvers
	}
	if len(c.Workspace.TestFiles) == 0 {
		c.Workspace.TestFiles = d.Workspace.TestFiles
	}
	if c.Workspace.Workers <= 0 {
		c.Workspace.Workers = d.Workspace.Workers
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = d.Watch.Debounce
	}
}

// Validate checks enumerated values and glob syntax.
func (c *Config) Validate() error {
	switch c.Analysis.NestedTests {
	case "flat", "stack":
	default:
		return fmt.Errorf("analysis.nested_tests must be flat or stack, got %q", c.Analysis.NestedTests)
	}

	for _, name := range c.Fixtures.Resolvers {
		switch name {
		case "parameters", "decorators", "annotations", "pytest", "script":
		default:
			return fmt.Errorf("fixtures.resolvers: unknown resolver %q", name)
		}
		if name == "script" && c.Fixtures.Script == "" {
			return errors.New("fixtures.resolvers: script resolver requires fixtures.script")
		}
	}

	for _, pattern := range append(append([]string{}, c.Workspace.TestFiles...), c.Workspace.Exclude...) {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("workspace: invalid glob %q: %w", pattern, err)
		}
	}

	if c.Store.Keep < 0 {
		return fmt.Errorf("store.keep must not be negative, got %d", c.Store.Keep)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Logger builds a logrus logger writing to stderr at the configured level
// and format.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
