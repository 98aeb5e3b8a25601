package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/jward/testlens/internal/pyast"
)

// Definition is one function or method extracted from a module.
type Definition struct {
	QualifiedName  string `json:"qualified_name"`
	Name           string `json:"name"`
	EnclosingClass string `json:"enclosing_class,omitempty"`
	Source         string `json:"source"`
	Hash           string `json:"hash"`
	StartLine      int    `json:"start_line"`
	EndLine        int    `json:"end_line"`
}

// Contains reports whether line falls inside the definition.
func (d *Definition) Contains(line int) bool {
	return line >= d.StartLine && line <= d.EndLine
}

// HashText returns the hex sha256 of s.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ExtractDefinitions returns every function definition in the tree, sync or
// async and at any depth, keyed by qualified name. Definitions are visited
// level by level in source order, so on a name collision a deeper definition
// replaces a shallower one and a later one replaces an earlier one at the
// same depth.
func ExtractDefinitions(idx *ParentIndex) map[string]*Definition {
	tree := idx.Tree()
	type found struct {
		id    pyast.NodeID
		depth int
	}
	var all []found
	tree.Walk(tree.Root, func(id pyast.NodeID) bool {
		if tree.Kind(id) == pyast.KindFunctionDefinition {
			all = append(all, found{id: id, depth: statementDepth(idx, id)})
		}
		return true
	})
	sort.SliceStable(all, func(i, j int) bool { return all[i].depth < all[j].depth })

	defs := make(map[string]*Definition, len(all))
	for _, f := range all {
		def := newDefinition(idx, f.id)
		defs[def.QualifiedName] = def
	}
	return defs
}

// groupingKinds are tree nodes with no statement of their own: bodies,
// decorator wrappers and the else/finally branches of compound statements.
var groupingKinds = map[string]bool{
	pyast.KindBlock:               true,
	pyast.KindDecoratedDefinition: true,
	"else_clause":                 true,
	"finally_clause":              true,
}

// statementDepth counts the statements and clauses enclosing id.
func statementDepth(idx *ParentIndex, id pyast.NodeID) int {
	tree := idx.Tree()
	depth := 0
	for cur := idx.Parent(id); cur != pyast.NoNode; cur = idx.Parent(cur) {
		kind := tree.Kind(cur)
		if kind != pyast.KindModule && !groupingKinds[kind] {
			depth++
		}
	}
	return depth
}

func newDefinition(idx *ParentIndex, id pyast.NodeID) *Definition {
	tree := idx.Tree()
	root := idx.DefinitionRoot(id)
	src := pyast.Unparse(tree, root)
	span := tree.Node(root).Span

	def := &Definition{
		QualifiedName: idx.QualifiedName(id),
		Name:          tree.Node(id).Name,
		Source:        src,
		Hash:          HashText(src),
		StartLine:     span.StartLine,
		EndLine:       span.EndLine,
	}
	if cls := idx.EnclosingClass(id); cls != pyast.NoNode {
		def.EnclosingClass = tree.Node(cls).Name
	}
	return def
}

// SourceMap flattens definitions into qualified name -> canonical text.
func SourceMap(defs map[string]*Definition) map[string]string {
	out := make(map[string]string, len(defs))
	for name, d := range defs {
		out[name] = d.Source
	}
	return out
}
