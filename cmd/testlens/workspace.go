package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jward/testlens"
)

func (a *app) hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [dir]",
		Short: "Hash every Python file and function in a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTargetDir(args)
			if err != nil {
				return err
			}
			analyzer, err := a.newAnalyzer()
			if err != nil {
				return err
			}
			hashes, err := analyzer.HashDirectory(cmd.Context(), dir)
			if err != nil {
				return err
			}
			return a.output(hashes)
		},
	}
}

func (a *app) indexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Record a snapshot of a workspace",
		Long:  "Hashes the workspace, computes its associations and stores both in the snapshot database for later impact runs.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			dir, err := resolveTargetDir(args)
			if err != nil {
				return err
			}
			if force {
				dbPath := a.resolveDBPath(findRepoRoot(dir))
				for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
					if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
						return fmt.Errorf("removing database for --force: %w", err)
					}
				}
				a.logger.WithField("db", dbPath).Info("cleared database")
			}

			engine, err := a.newEngine(dir)
			if err != nil {
				return err
			}
			defer engine.Close()

			snap, err := engine.Snapshot(cmd.Context(), dir)
			if err != nil {
				return err
			}
			a.logger.WithFields(logrus.Fields{
				"root":     dir,
				"duration": time.Since(start).Round(time.Millisecond).String(),
			}).Info("indexed workspace")
			return a.output(toCLISnapshot(snap))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete the database before indexing")
	return cmd
}

func (a *app) impactedCmd() *cobra.Command {
	var (
		patchPath string
		update    bool
	)
	cmd := &cobra.Command{
		Use:   "impacted [dir]",
		Short: "List the tests affected by changes since the last snapshot",
		Long: "Compares the workspace with its latest snapshot, or applies a unified diff with --patch, " +
			"and prints the tests to rerun. In text format the output is one pytest node id per line.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTargetDir(args)
			if err != nil {
				return err
			}
			engine, err := a.newEngine(dir)
			if err != nil {
				return err
			}
			defer engine.Close()

			var impact *testlens.Impact
			if patchPath != "" {
				patch, err := readPatch(patchPath)
				if err != nil {
					return err
				}
				impact, err = engine.ImpactedFromPatch(cmd.Context(), dir, patch)
				if err != nil {
					return err
				}
				if update {
					if _, err := engine.Snapshot(cmd.Context(), dir); err != nil {
						return err
					}
				}
			} else {
				impact, err = engine.Impacted(cmd.Context(), dir, update)
				if err != nil {
					return err
				}
			}
			a.logRemoved(impact)
			return a.output(toCLIImpact(impact))
		},
	}
	cmd.Flags().StringVar(&patchPath, "patch", "", "unified diff to analyze instead of the work tree (- for stdin)")
	cmd.Flags().BoolVar(&update, "update", false, "record the current state as a new snapshot")
	return cmd
}

func readPatch(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading patch from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	return data, nil
}

func (a *app) logRemoved(impact *testlens.Impact) {
	for _, id := range impact.Removed {
		a.logger.WithField("test", id.String()).Info("test removed")
	}
}
