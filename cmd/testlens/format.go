package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/jward/testlens"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "yaml", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid format %q: must be one of %s",
		testlens.ErrInvalidArguments, format, strings.Join(validFormats, ", "))
}

// output writes v to stdout in the selected format. JSON output is a single
// compact line.
func (a *app) output(v any) error {
	switch a.flagFormat {
	case "yaml":
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case "text":
		return outputText(a.stdout, v)
	default:
		enc := json.NewEncoder(a.stdout)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
}

// outputText dispatches to the text formatter for v's type.
func outputText(w io.Writer, v any) error {
	switch r := v.(type) {
	case CLIDefinitions:
		for _, name := range sortedKeys(r) {
			fmt.Fprintf(w, "# %s\n%s\n\n", name, r[name])
		}
	case CLIProfiles:
		formatProfilesText(w, r)
	case CLIAssociations:
		for _, sym := range sortedKeys(r) {
			fmt.Fprintf(w, "%s: %s\n", sym, strings.Join(r[sym], " "))
		}
	case testlens.WorkspaceHash:
		formatHashesText(w, r)
	case CLISnapshot:
		fmt.Fprintf(w, "snapshot %s: %d files, %d tests\n", r.ID, r.FileCount, r.TestCount)
	case CLIImpact:
		for _, id := range r.Run {
			fmt.Fprintln(w, id)
		}
	case CLITests:
		for _, t := range r.Tests {
			fmt.Fprintln(w, t)
		}
	case []CLIFile:
		formatFilesText(w, r)
	case []CLISnapshot:
		formatSnapshotsText(w, r)
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatProfilesText(w io.Writer, profiles CLIProfiles) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST\tCALLS\tFIXTURES")
	for _, name := range sortedKeys(profiles) {
		p := profiles[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, strings.Join(p.Calls, ","), strings.Join(p.Fixtures, ","))
	}
	tw.Flush()
}

func formatHashesText(w io.Writer, hashes testlens.WorkspaceHash) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tHASH\tTEST\tFUNCTIONS")
	for _, path := range hashes.Paths() {
		fh := hashes[path]
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\n", path, shortHash(fh.Hash), fh.IsTestFile, len(fh.Functions))
	}
	tw.Flush()
}

func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tHASH\tTEST")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", f.Path, shortHash(f.Hash), f.IsTest)
	}
	tw.Flush()
}

func formatSnapshotsText(w io.Writer, snaps []CLISnapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFILES\tTESTS")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.FileCount, s.TestCount)
	}
	tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
