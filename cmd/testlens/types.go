package main

import (
	"time"

	"github.com/jward/testlens"
)

// CLIDefinitions maps qualified names to canonical source.
type CLIDefinitions map[string]string

// CLIProfile is the calls and fixtures of one test.
type CLIProfile struct {
	Calls    []string `json:"calls" yaml:"calls"`
	Fixtures []string `json:"fixtures" yaml:"fixtures"`
}

// CLIProfiles maps test names to their profile.
type CLIProfiles map[string]CLIProfile

// CLIAssociations maps imported symbols to the tests that call them.
type CLIAssociations map[string][]string

// CLISnapshot is a JSON-friendly snapshot representation.
type CLISnapshot struct {
	ID          string    `json:"id" yaml:"id"`
	Root        string    `json:"root" yaml:"root"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	FileCount   int       `json:"file_count" yaml:"file_count"`
	TestCount   int       `json:"test_count" yaml:"test_count"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// CLIImpact lists pytest node ids to run and node ids that disappeared.
type CLIImpact struct {
	Run     []string `json:"run" yaml:"run"`
	Removed []string `json:"removed" yaml:"removed"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	Path   string `json:"path" yaml:"path"`
	Hash   string `json:"hash" yaml:"hash"`
	IsTest bool   `json:"is_test" yaml:"is_test"`
}

// CLITests is the result of a tests-for query.
type CLITests struct {
	Symbol string   `json:"symbol" yaml:"symbol"`
	Tests  []string `json:"tests" yaml:"tests"`
}

func toCLIProfiles(profiles map[string]*testlens.TestProfile) CLIProfiles {
	out := make(CLIProfiles, len(profiles))
	for name, p := range profiles {
		cp := CLIProfile{Calls: p.Calls, Fixtures: p.Fixtures}
		if cp.Calls == nil {
			cp.Calls = []string{}
		}
		if cp.Fixtures == nil {
			cp.Fixtures = []string{}
		}
		out[name] = cp
	}
	return out
}

func toCLISnapshot(s *testlens.Snapshot) CLISnapshot {
	return CLISnapshot{
		ID:          s.ID,
		Root:        s.Root,
		Fingerprint: s.Fingerprint,
		FileCount:   s.FileCount,
		TestCount:   s.TestCount,
		CreatedAt:   s.CreatedAt,
	}
}

func toCLIImpact(i *testlens.Impact) CLIImpact {
	out := CLIImpact{Run: i.RunIDs(), Removed: make([]string, 0, len(i.Removed))}
	for _, t := range i.Removed {
		out.Removed = append(out.Removed, t.String())
	}
	return out
}
