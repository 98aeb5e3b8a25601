package testlens

import (
	"sort"
	"strings"

	"github.com/jward/testlens/internal/metrics"
)

// TestID identifies a test by file and qualified name.
type TestID struct {
	File string `json:"file" yaml:"file"`
	Name string `json:"name" yaml:"name"`
}

// String returns the pytest node id, "file::name".
func (t TestID) String() string {
	return t.File + "::" + t.Name
}

// ParseTestID splits a "file::name" node id at its first separator.
func ParseTestID(s string) (TestID, bool) {
	i := strings.Index(s, "::")
	if i < 0 {
		return TestID{}, false
	}
	return TestID{File: s[:i], Name: s[i+2:]}, true
}

// Impact lists the tests to rerun after a change and the tests the change
// removed.
type Impact struct {
	Run     []TestID `json:"run" yaml:"run"`
	Removed []TestID `json:"removed" yaml:"removed"`
}

// RunIDs returns the node ids of the tests to run.
func (i *Impact) RunIDs() []string {
	out := make([]string, 0, len(i.Run))
	for _, t := range i.Run {
		out = append(out, t.String())
	}
	return out
}

// TestsForFunction returns the tests associated with a qualified function
// name. A method also picks up the tests of its class, since the association
// map is keyed by imported names. The result is sorted and unique.
func TestsForFunction(name string, assoc AssociationMap) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(tests []string) {
		for _, t := range tests {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	add(assoc[name])
	if i := strings.Index(name, "::"); i >= 0 {
		add(assoc[name[:i]])
	}
	sort.Strings(out)
	return out
}

// ImpactedTests selects the tests affected by diff. Tests added or changed in
// test files run directly. Any other added, changed or deleted function runs
// the tests associated with it. Tests deleted from test files are reported as
// removed and never run.
func (a *Analyzer) ImpactedTests(diff FilesDiff, assoc AssociationMap) *Impact {
	run := make(map[TestID]bool)
	removed := make(map[TestID]bool)

	byAssoc := func(fn string) {
		for _, id := range TestsForFunction(fn, assoc) {
			if tid, ok := ParseTestID(id); ok {
				run[tid] = true
			}
		}
	}

	for path, fh := range diff.Added {
		for fn := range fh.Functions {
			if fh.IsTestFile && a.isTestFunction(fn) {
				run[TestID{File: path, Name: fn}] = true
				continue
			}
			byAssoc(fn)
		}
	}
	for path, fh := range diff.Deleted {
		for fn := range fh.Functions {
			if fh.IsTestFile && a.isTestFunction(fn) {
				removed[TestID{File: path, Name: fn}] = true
				continue
			}
			byAssoc(fn)
		}
	}
	for tid := range removed {
		delete(run, tid)
	}

	impact := &Impact{Run: sortedTestIDs(run), Removed: sortedTestIDs(removed)}
	metrics.ImpactedTests.Set(float64(len(impact.Run)))
	return impact
}

// isTestFunction checks the last segment of a qualified name, so methods of
// test classes count.
func (a *Analyzer) isTestFunction(qualified string) bool {
	name := qualified
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		name = qualified[i+2:]
	}
	return a.IsTestName(name)
}

func sortedTestIDs(set map[TestID]bool) []TestID {
	out := make([]TestID, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Name < out[j].Name
	})
	return out
}
