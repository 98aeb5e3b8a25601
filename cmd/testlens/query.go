package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/testlens"
)

func (a *app) queryCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the latest recorded snapshot",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", ".", "workspace whose snapshots are queried")

	// withQuery opens the engine for dir and hands fn a query scoped to it.
	withQuery := func(fn func(q *testlens.QueryBuilder, root string) error) error {
		root, err := resolveTargetDir([]string{dir})
		if err != nil {
			return err
		}
		engine, err := a.newEngine(root)
		if err != nil {
			return err
		}
		defer engine.Close()
		return fn(engine.Query().Root(root), root)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "tests-for <name>",
			Short: "List the tests that call a function or method",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQuery(func(q *testlens.QueryBuilder, _ string) error {
					tests, err := q.TestsFor(args[0])
					if err != nil {
						return err
					}
					return a.output(CLITests{Symbol: args[0], Tests: tests})
				})
			},
		},
		&cobra.Command{
			Use:   "function-at <file> <line>",
			Short: "List the tests that call the function enclosing a line",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				line, err := strconv.Atoi(args[1])
				if err != nil || line < 1 {
					return fmt.Errorf("%w: invalid line %q", testlens.ErrInvalidArguments, args[1])
				}
				return withQuery(func(q *testlens.QueryBuilder, root string) error {
					path, err := relativeTo(root, args[0])
					if err != nil {
						return err
					}
					fn, err := q.FunctionAt(path, line)
					if err != nil {
						return err
					}
					if fn == nil {
						return a.output(CLITests{Tests: []string{}})
					}
					tests, err := q.TestsFor(fn.QualifiedName)
					if err != nil {
						return err
					}
					return a.output(CLITests{Symbol: fn.QualifiedName, Tests: tests})
				})
			},
		},
		&cobra.Command{
			Use:   "files",
			Short: "List the files of the latest snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQuery(func(q *testlens.QueryBuilder, _ string) error {
					files, err := q.Files()
					if err != nil {
						return err
					}
					out := make([]CLIFile, 0, len(files))
					for _, f := range files {
						out = append(out, CLIFile{Path: f.Path, Hash: f.Hash, IsTest: f.IsTest})
					}
					return a.output(out)
				})
			},
		},
		&cobra.Command{
			Use:   "snapshots",
			Short: "List recorded snapshots, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withQuery(func(q *testlens.QueryBuilder, _ string) error {
					snaps, err := q.Snapshots()
					if err != nil {
						return err
					}
					out := make([]CLISnapshot, 0, len(snaps))
					for _, s := range snaps {
						out = append(out, toCLISnapshot(s))
					}
					return a.output(out)
				})
			},
		},
	)
	return cmd
}

// relativeTo returns file as a slash-separated path relative to root.
func relativeTo(root, file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", file, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%s is outside %s", file, root)
	}
	return filepath.ToSlash(rel), nil
}
