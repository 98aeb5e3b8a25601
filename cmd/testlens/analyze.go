package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/testlens"
	"github.com/jward/testlens/internal/analysis"
)

func (a *app) definitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "definitions <file>",
		Short: "Print the canonical source of every function and method",
		Long:  "Parses one Python file and prints {qualified_name: canonical_source}. Methods are named Class::method.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := a.newAnalyzer()
			if err != nil {
				return err
			}
			defs, err := analyzer.Definitions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.output(CLIDefinitions(analysis.SourceMap(defs)))
		},
	}
}

func (a *app) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <file>",
		Short: "Print the calls and fixtures of every test",
		Long:  "Parses one Python file and prints {test_name: {calls, fixtures}}. Only calls through bare names are recorded.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := a.newAnalyzer()
			if err != nil {
				return err
			}
			profiles, err := analyzer.TestProfiles(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.output(toCLIProfiles(profiles))
		},
	}
}

func (a *app) associationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "associations [file]",
		Short: "Map imported symbols to the tests that call them",
		Long:  "Parses one Python test file and prints {symbol: [test...]} for every name bound by a top-level from-import.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if err := a.output(CLIAssociations{}); err != nil {
					return err
				}
				return fmt.Errorf("%w: associations requires a file path", testlens.ErrInvalidArguments)
			}
			analyzer, err := a.newAnalyzer()
			if err != nil {
				return err
			}
			assoc, err := analyzer.Associations(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.output(CLIAssociations(assoc))
		},
	}
}
