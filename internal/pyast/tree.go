// Package pyast converts tree-sitter Python parse trees into a flat node
// arena and provides the traversal and serialization primitives shared by
// every analysis pass.
//
// Nodes are addressed by NodeID, an index into Tree.Nodes. The arena carries
// no parent pointers; passes that need upward navigation build an explicit
// index (see the analysis package).
package pyast

// NodeID indexes a node in a Tree's arena.
type NodeID int32

// NoNode is the sentinel for "no such node".
const NoNode NodeID = -1

// Node kinds used by the analysis passes. Values are tree-sitter-python node
// types.
const (
	KindModule              = "module"
	KindClassDefinition     = "class_definition"
	KindFunctionDefinition  = "function_definition"
	KindDecoratedDefinition = "decorated_definition"
	KindDecorator           = "decorator"
	KindCall                = "call"
	KindIdentifier          = "identifier"
	KindAttribute           = "attribute"
	KindImportFrom          = "import_from_statement"
	KindFutureImport        = "future_import_statement"
	KindAliasedImport       = "aliased_import"
	KindWildcardImport      = "wildcard_import"
	KindDottedName          = "dotted_name"
	KindRelativeImport      = "relative_import"
	KindParameters          = "parameters"
	KindBlock               = "block"
	KindComment             = "comment"
	KindString              = "string"
)

// Span is a node's source extent. Lines are 1-based, columns 0-based bytes.
type Span struct {
	StartByte uint32
	EndByte   uint32
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Node is one element of the arena.
type Node struct {
	Kind     string
	Named    bool
	Field    string // field name in the parent, "" if none
	Name     string // definition name or identifier text
	Children []NodeID
	Span     Span
}

// Tree is an immutable parsed Python module.
type Tree struct {
	Nodes  []Node
	Root   NodeID
	Source []byte
}

// Node returns the node with the given ID.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// Kind returns the kind of id, or "" for NoNode.
func (t *Tree) Kind(id NodeID) string {
	if id == NoNode {
		return ""
	}
	return t.Nodes[id].Kind
}

// Text returns the source text covered by id.
func (t *Tree) Text(id NodeID) string {
	if id == NoNode {
		return ""
	}
	s := t.Nodes[id].Span
	return string(t.Source[s.StartByte:s.EndByte])
}

// Children returns the child IDs of id in source order.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.Nodes[id].Children
}

// NamedChildren returns the named children of id, skipping comments.
func (t *Tree) NamedChildren(id NodeID) []NodeID {
	var out []NodeID
	for _, c := range t.Nodes[id].Children {
		n := &t.Nodes[c]
		if n.Named && n.Kind != KindComment {
			out = append(out, c)
		}
	}
	return out
}

// ChildByField returns the first child of id stored under field, or NoNode.
func (t *Tree) ChildByField(id NodeID, field string) NodeID {
	for _, c := range t.Nodes[id].Children {
		if t.Nodes[c].Field == field {
			return c
		}
	}
	return NoNode
}

// ChildrenByField returns every child of id stored under field.
func (t *Tree) ChildrenByField(id NodeID, field string) []NodeID {
	var out []NodeID
	for _, c := range t.Nodes[id].Children {
		if t.Nodes[c].Field == field {
			out = append(out, c)
		}
	}
	return out
}

// Walk visits the subtree rooted at id in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	t.Inspect(id, fn, nil)
}

// Inspect visits the subtree rooted at id in pre-order, calling enter before
// a node's children and exit after them. exit is not called for nodes whose
// enter returned false. Either callback may be nil.
func (t *Tree) Inspect(id NodeID, enter func(NodeID) bool, exit func(NodeID)) {
	if id == NoNode {
		return
	}
	if enter != nil && !enter(id) {
		return
	}
	for _, c := range t.Nodes[id].Children {
		t.Inspect(c, enter, exit)
	}
	if exit != nil {
		exit(id)
	}
}
