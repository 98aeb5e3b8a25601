package testlens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestID(t *testing.T) {
	t.Parallel()
	id := TestID{File: "tests/test_a.py", Name: "TestX::test_y"}
	assert.Equal(t, "tests/test_a.py::TestX::test_y", id.String())

	parsed, ok := ParseTestID(id.String())
	assert.True(t, ok)
	assert.Equal(t, id, parsed)

	_, ok = ParseTestID("no-separator")
	assert.False(t, ok)
}

func TestTestsForFunction(t *testing.T) {
	t.Parallel()
	assoc := AssociationMap{
		"helper": {"t.py::test_b", "t.py::test_a"},
		"Calc":   {"t.py::test_a", "t.py::test_c"},
		"unused": {},
	}
	assert.Equal(t, []string{"t.py::test_a", "t.py::test_b"}, TestsForFunction("helper", assoc))
	assert.Equal(t, []string{"t.py::test_a", "t.py::test_c"}, TestsForFunction("Calc::total", assoc))
	assert.Equal(t, []string{}, TestsForFunction("unused", assoc))
	assert.Equal(t, []string{}, TestsForFunction("missing", assoc))
}

func TestImpactedTests(t *testing.T) {
	t.Parallel()
	assoc := AssociationMap{
		"helper": {"tests/test_a.py::test_uses_helper"},
		"Calc":   {"tests/test_a.py::TestCalc::test_total"},
		"gone":   {"tests/test_b.py::test_gone_caller"},
	}
	diff := FilesDiff{
		Added: WorkspaceHash{
			"app.py": {Functions: map[string]FunctionHash{"helper": {}, "Calc::total": {}, "untested": {}}},
			"tests/test_a.py": {IsTestFile: true, Functions: map[string]FunctionHash{
				"test_new": {}, "TestCalc::test_other": {}, "fixture_helper": {},
			}},
		},
		Deleted: WorkspaceHash{
			"lib.py": {Functions: map[string]FunctionHash{"gone": {}}},
			"tests/test_b.py": {IsTestFile: true, Functions: map[string]FunctionHash{
				"test_removed": {},
			}},
		},
	}

	impact := NewAnalyzer().ImpactedTests(diff, assoc)
	assert.Equal(t, []TestID{
		{File: "tests/test_a.py", Name: "TestCalc::test_other"},
		{File: "tests/test_a.py", Name: "TestCalc::test_total"},
		{File: "tests/test_a.py", Name: "test_new"},
		{File: "tests/test_a.py", Name: "test_uses_helper"},
		{File: "tests/test_b.py", Name: "test_gone_caller"},
	}, impact.Run)
	assert.Equal(t, []TestID{{File: "tests/test_b.py", Name: "test_removed"}}, impact.Removed)
	assert.Equal(t, "tests/test_a.py::TestCalc::test_other", impact.RunIDs()[0])
}

func TestImpactedTests_RemovedNeverRuns(t *testing.T) {
	t.Parallel()
	assoc := AssociationMap{"helper": {"tests/test_a.py::test_old"}}
	diff := FilesDiff{
		Added: WorkspaceHash{"app.py": {Functions: map[string]FunctionHash{"helper": {}}}},
		Deleted: WorkspaceHash{"tests/test_a.py": {IsTestFile: true, Functions: map[string]FunctionHash{
			"test_old": {},
		}}},
	}
	impact := NewAnalyzer().ImpactedTests(diff, assoc)
	assert.Empty(t, impact.Run)
	assert.Equal(t, []TestID{{File: "tests/test_a.py", Name: "test_old"}}, impact.Removed)
}

func TestImpactedTests_Empty(t *testing.T) {
	t.Parallel()
	impact := NewAnalyzer().ImpactedTests(FilesDiff{}, AssociationMap{})
	assert.NotNil(t, impact.Run)
	assert.NotNil(t, impact.Removed)
	assert.Empty(t, impact.Run)
}
