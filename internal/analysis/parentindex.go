// Package analysis implements the per-file passes over a parsed Python
// module: the parent index, definition extraction, test-scoped call
// collection, fixture resolution, import scanning and test association.
//
// Every pass is a pure function of one *pyast.Tree. Passes share no state and
// are safe to run concurrently over different trees.
package analysis

import (
	"errors"
	"fmt"

	"github.com/jward/testlens/internal/pyast"
)

// ErrMalformedTree indicates a tree whose child links form a cycle or reach a
// node twice.
var ErrMalformedTree = errors.New("analysis: malformed tree")

// ParentIndex maps every non-root node to its syntactic parent.
type ParentIndex struct {
	tree    *pyast.Tree
	parents []pyast.NodeID
}

// BuildParentIndex records the parent of every node with one pre-order
// traversal from the root.
func BuildParentIndex(tree *pyast.Tree) (*ParentIndex, error) {
	idx := &ParentIndex{
		tree:    tree,
		parents: make([]pyast.NodeID, tree.Len()),
	}
	seen := make([]bool, tree.Len())
	for i := range idx.parents {
		idx.parents[i] = pyast.NoNode
	}
	if tree.Len() == 0 {
		return idx, nil
	}

	stack := []pyast.NodeID{tree.Root}
	seen[tree.Root] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := tree.Children(id)
		for i := len(children) - 1; i >= 0; i-- {
			c := children[i]
			if c < 0 || int(c) >= tree.Len() {
				return nil, fmt.Errorf("%w: node %d has out-of-range child %d", ErrMalformedTree, id, c)
			}
			if c == id {
				return nil, fmt.Errorf("%w: node %d is its own child", ErrMalformedTree, id)
			}
			if seen[c] {
				return nil, fmt.Errorf("%w: node %d reached twice", ErrMalformedTree, c)
			}
			seen[c] = true
			idx.parents[c] = id
			stack = append(stack, c)
		}
	}
	return idx, nil
}

// Tree returns the indexed tree.
func (p *ParentIndex) Tree() *pyast.Tree { return p.tree }

// Parent returns the parent of id, or NoNode for the root.
func (p *ParentIndex) Parent(id pyast.NodeID) pyast.NodeID {
	if id < 0 || int(id) >= len(p.parents) {
		return pyast.NoNode
	}
	return p.parents[id]
}

// EnclosingClass returns the nearest class_definition ancestor of id, or
// NoNode when id is not inside a class. Function definitions between id and
// the class do not stop the search.
func (p *ParentIndex) EnclosingClass(id pyast.NodeID) pyast.NodeID {
	for cur := p.Parent(id); cur != pyast.NoNode; cur = p.Parent(cur) {
		if p.tree.Kind(cur) == pyast.KindClassDefinition {
			return cur
		}
	}
	return pyast.NoNode
}

// QualifiedName returns "Class::name" for a definition inside a class and the
// bare name otherwise.
func (p *ParentIndex) QualifiedName(def pyast.NodeID) string {
	name := p.tree.Node(def).Name
	if cls := p.EnclosingClass(def); cls != pyast.NoNode {
		return p.tree.Node(cls).Name + "::" + name
	}
	return name
}

// DefinitionRoot returns the decorated_definition wrapping def, or def itself
// when it has no decorators.
func (p *ParentIndex) DefinitionRoot(def pyast.NodeID) pyast.NodeID {
	if parent := p.Parent(def); parent != pyast.NoNode && p.tree.Kind(parent) == pyast.KindDecoratedDefinition {
		return parent
	}
	return def
}
