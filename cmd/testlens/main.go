package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jward/testlens/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errSilent marks an error whose diagnostic has already been written.
var errSilent = errors.New("silent")

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(stderr, "Error: %s\n", err)
		}
		return 1
	}
	return 0
}

// app holds the state shared by every command of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string

	cfg    *config.Config
	logger *logrus.Logger
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "testlens",
		Short:         "Static test-impact analysis for Python test suites",
		Long:          "testlens parses Python sources with tree-sitter and maps imported functions to the tests that call them, so only impacted tests need to run.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(a.flagFormat); err != nil {
				return err
			}
			return a.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.flagDB, "db", "", "database path (default: store.path relative to repo root)")
	flags.StringVar(&a.flagFormat, "format", "json", "output format: json|yaml|text")
	flags.StringVar(&a.flagConfig, "config", "", "config file (default: "+config.FileName+" at repo root)")
	flags.StringVar(&a.flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(
		a.definitionsCmd(),
		a.profileCmd(),
		a.associationsCmd(),
		a.hashCmd(),
		a.indexCmd(),
		a.impactedCmd(),
		a.watchCmd(),
		a.queryCmd(),
	)
	return root
}

// loadConfig reads the config file, applies flag overrides and sets up
// logging on stderr.
func (a *app) loadConfig() error {
	var err error
	if a.flagConfig != "" {
		a.cfg, err = config.Load(a.flagConfig)
	} else {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return cwdErr
		}
		a.cfg, err = config.Discover(findRepoRoot(cwd))
	}
	if err != nil {
		return err
	}

	if a.flagLogLevel != "" {
		if _, err := logrus.ParseLevel(a.flagLogLevel); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		a.cfg.Log.Level = a.flagLogLevel
	}
	a.logger = a.cfg.Logger()
	a.logger.SetOutput(a.stderr)
	return nil
}

// resolveTargetDir returns the absolute path of the workspace directory.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the
// configured store path.
func (a *app) resolveDBPath(repoRoot string) string {
	path := a.cfg.Store.Path
	if a.flagDB != "" {
		path = a.flagDB
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}
