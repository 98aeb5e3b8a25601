package pyast

import "strings"

const kindLineContinuation = "line_continuation"

// token is one emitted leaf together with the context that decides the
// spacing around it.
type token struct {
	text        string
	parent      string
	parentField string
}

type unparser struct {
	tree     *Tree
	lines    []string
	cur      strings.Builder
	indent   int
	needLine bool
	prev     token
	hasPrev  bool

	// verbatimStrings keeps string literals as written, for expressions
	// nested inside f-strings.
	verbatimStrings bool
}

// Unparse re-serializes the subtree rooted at id into canonical text. The
// output drops comments and line continuations, puts one statement per line
// with four-space indentation, joins tokens with single spaces except where
// Python style attaches them, and removes trailing commas before a closing
// bracket. String literals are normalized to one quote style and parentheses
// that wrap a whole operand are dropped. The subtree's own first
// line always starts at indentation zero, so the text of a definition does not
// depend on how deeply it is nested.
func Unparse(t *Tree, id NodeID) string {
	if id == NoNode {
		return ""
	}
	u := &unparser{tree: t}
	u.node(id, NoNode, 0)
	u.flush()
	return strings.Join(u.lines, "\n")
}

func (u *unparser) node(id, parent NodeID, indent int) {
	n := &u.tree.Nodes[id]
	switch n.Kind {
	case KindComment, kindLineContinuation:
		return
	case KindString:
		u.emit(u.stringLiteral(id), parent, indent)
		return
	case kindParenthesizedExpression:
		if inner := u.unwrapParens(id, parent); inner != NoNode {
			u.node(inner, parent, indent)
			return
		}
	case KindModule:
		u.statements(id, indent)
		return
	case KindBlock:
		u.statements(id, indent+1)
		u.needLine = true
		return
	case KindDecoratedDefinition:
		for _, c := range n.Children {
			if skipped(u.tree.Kind(c)) {
				continue
			}
			u.needLine = true
			u.node(c, id, indent)
		}
		return
	}

	if len(n.Children) == 0 {
		u.emit(u.tree.Text(id), parent, indent)
		return
	}
	for i, c := range n.Children {
		if u.droppedComma(id, i) {
			continue
		}
		u.node(c, id, indent)
	}
}

// statements emits every statement child of id on its own line.
func (u *unparser) statements(id NodeID, indent int) {
	for _, c := range u.tree.Nodes[id].Children {
		child := &u.tree.Nodes[c]
		if !child.Named || skipped(child.Kind) {
			continue
		}
		u.needLine = true
		u.node(c, id, indent)
	}
}

func skipped(kind string) bool {
	return kind == KindComment || kind == kindLineContinuation
}

// droppedComma reports whether the i-th child of parent is a trailing comma
// directly before a closing bracket that can be removed without changing the
// meaning of the code.
func (u *unparser) droppedComma(parent NodeID, i int) bool {
	children := u.tree.Nodes[parent].Children
	c := &u.tree.Nodes[children[i]]
	if c.Named || c.Kind != "," {
		return false
	}

	closer := false
	for _, next := range children[i+1:] {
		nn := &u.tree.Nodes[next]
		if skipped(nn.Kind) {
			continue
		}
		closer = !nn.Named && (nn.Kind == ")" || nn.Kind == "]" || nn.Kind == "}")
		break
	}
	if !closer {
		return false
	}

	switch u.tree.Nodes[parent].Kind {
	case "tuple", "tuple_pattern":
		if len(u.tree.NamedChildren(parent)) == 1 {
			return false
		}
	case "subscript":
		if len(u.tree.ChildrenByField(parent, "subscript")) == 1 {
			return false
		}
	}
	return true
}

func (u *unparser) emit(text string, parent NodeID, indent int) {
	tok := token{text: text}
	if parent != NoNode {
		tok.parent = u.tree.Nodes[parent].Kind
		tok.parentField = u.tree.Nodes[parent].Field
	}

	if u.needLine {
		u.flush()
		u.indent = indent
		u.needLine = false
		u.hasPrev = false
	}
	if u.hasPrev && spaced(u.prev, tok) {
		u.cur.WriteByte(' ')
	}
	u.cur.WriteString(text)
	u.prev = tok
	u.hasPrev = true
}

func (u *unparser) flush() {
	if u.cur.Len() == 0 {
		return
	}
	u.lines = append(u.lines, strings.Repeat("    ", u.indent)+u.cur.String())
	u.cur.Reset()
}

// spaced reports whether a single space separates prev and cur.
func spaced(prev, cur token) bool {
	switch cur.text {
	case ")", "]", "}", ",", ";", ":":
		return false
	case "(":
		switch cur.parent {
		case "argument_list", "parameters":
			return false
		case "generator_expression":
			if cur.parentField == "arguments" {
				return false
			}
		}
	case "[":
		switch cur.parent {
		case "subscript", "generic_type", "type_parameter":
			return false
		}
	case ".":
		if cur.parent == KindAttribute || cur.parent == KindDottedName {
			return false
		}
	case "=":
		if cur.parent == "keyword_argument" || cur.parent == "default_parameter" {
			return false
		}
	case "import":
		return true
	}

	switch prev.text {
	case "(", "[", "{":
		return false
	case ".":
		switch prev.parent {
		case KindAttribute, KindDottedName, "import_prefix":
			return false
		}
	case "=":
		if prev.parent == "keyword_argument" || prev.parent == "default_parameter" {
			return false
		}
	case ":":
		if prev.parent == "slice" {
			return false
		}
	case "-", "+", "~":
		if prev.parent == "unary_operator" {
			return false
		}
	case "*", "**":
		switch prev.parent {
		case "list_splat", "dictionary_splat", "list_splat_pattern", "dictionary_splat_pattern":
			return false
		}
	case "@":
		if prev.parent == KindDecorator {
			return false
		}
	}
	return true
}
