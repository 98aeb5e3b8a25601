package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jward/testlens/internal/pyast"
)

func newTestIndex(t *testing.T, src string) *ParentIndex {
	t.Helper()
	tree, err := pyast.NewParser().Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	idx, err := BuildParentIndex(tree)
	require.NoError(t, err)
	return idx
}

func collect(t *testing.T, c *Collector, src string) map[string]*TestProfile {
	t.Helper()
	profiles, err := c.Collect(context.Background(), newTestIndex(t, src))
	require.NoError(t, err)
	return profiles
}

// findDef returns the first function_definition named name.
func findDef(t *testing.T, idx *ParentIndex, name string) pyast.NodeID {
	t.Helper()
	tree := idx.Tree()
	found := pyast.NoNode
	tree.Walk(tree.Root, func(id pyast.NodeID) bool {
		if found == pyast.NoNode && tree.Kind(id) == pyast.KindFunctionDefinition && tree.Node(id).Name == name {
			found = id
		}
		return found == pyast.NoNode
	})
	require.NotEqual(t, pyast.NoNode, found, "no definition %s", name)
	return found
}
