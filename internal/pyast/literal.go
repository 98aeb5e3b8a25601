package pyast

import "strings"

const (
	kindInterpolation           = "interpolation"
	kindParenthesizedExpression = "parenthesized_expression"
)

// redundantParens lists the parents under which parentheses around a single
// expression do not change the parse.
var redundantParens = map[string]bool{
	"return_statement":          true,
	"expression_statement":      true,
	"assignment":                true,
	"augmented_assignment":      true,
	"if_statement":              true,
	"elif_clause":               true,
	"while_statement":           true,
	"assert_statement":          true,
	"argument_list":             true,
	"keyword_argument":          true,
	"list_splat":                true,
	"dictionary_splat":          true,
	"not_operator":              true,
	"expression_list":           true,
	"tuple":                     true,
	"list":                      true,
	"set":                       true,
	kindParenthesizedExpression: true,
}

// unwrapParens returns the expression inside a parenthesized_expression that
// sits directly under one of the redundantParens parents, or NoNode.
func (u *unparser) unwrapParens(id, parent NodeID) NodeID {
	if parent == NoNode || u.tree.Nodes[id].Kind != kindParenthesizedExpression {
		return NoNode
	}
	if !redundantParens[u.tree.Nodes[parent].Kind] {
		return NoNode
	}
	inner := u.tree.NamedChildren(id)
	if len(inner) != 1 {
		return NoNode
	}
	return inner[0]
}

// stringLiteral renders a string literal with double quotes where the body
// allows it. Escapes are rewritten for the new quote character, raw and
// triple-quoted strings switch only when the body does not contain it, and
// f-string interpolations are re-serialized.
func (u *unparser) stringLiteral(id NodeID) string {
	text := u.tree.Text(id)
	if u.verbatimStrings {
		return text
	}

	p := 0
	for p < len(text) && strings.IndexByte("rRbBuUfF", text[p]) >= 0 {
		p++
	}
	prefix, rest := text[:p], text[p:]
	if rest == "" || (rest[0] != '\'' && rest[0] != '"') {
		return text
	}
	quote := rest[:1]
	if strings.HasPrefix(rest, `'''`) || strings.HasPrefix(rest, `"""`) {
		quote = rest[:3]
	}
	if len(rest) < 2*len(quote) || !strings.HasSuffix(rest, quote) {
		return text
	}
	bodyStart, bodyEnd := p+len(quote), len(text)-len(quote)

	// Literal segments alternate with interpolations: segs[i] precedes interps[i].
	start := int(u.tree.Nodes[id].Span.StartByte)
	var segs, interps []string
	quotedInterp := false
	pos := bodyStart
	for _, c := range u.tree.Nodes[id].Children {
		if u.tree.Kind(c) != kindInterpolation {
			continue
		}
		span := u.tree.Nodes[c].Span
		s, e := int(span.StartByte)-start, int(span.EndByte)-start
		if s < pos || e > bodyEnd {
			return text
		}
		segs = append(segs, text[pos:s])
		interps = append(interps, u.interpolation(c))
		if strings.ContainsAny(text[s:e], `'"`) {
			quotedInterp = true
		}
		pos = e
	}
	segs = append(segs, text[pos:bodyEnd])

	raw := strings.ContainsAny(prefix, "rR")
	from := quote[0]
	to := byte('"')
	hasSingle, hasDouble := false, false
	for _, s := range segs {
		sq, dq := quoteUse(s, raw)
		hasSingle = hasSingle || sq
		hasDouble = hasDouble || dq
	}
	if hasDouble && !hasSingle {
		to = '\''
	}
	toPresent := (to == '"' && hasDouble) || (to == '\'' && hasSingle)
	if quotedInterp || ((raw || len(quote) == 3) && toPresent) {
		to = from
	}

	q := strings.Repeat(string(to), len(quote))
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(q)
	for i, s := range segs {
		switch {
		case to == from || raw:
			b.WriteString(s)
		default:
			b.WriteString(requote(s, to, len(quote) == 3))
		}
		if i < len(interps) {
			b.WriteString(interps[i])
		}
	}
	b.WriteString(q)
	return b.String()
}

// quoteUse reports whether the value of a string body contains single and
// double quote characters, escaped or not.
func quoteUse(body string, raw bool) (single, double bool) {
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && !raw && i+1 < len(body) {
			i++
			c = body[i]
		}
		switch c {
		case '\'':
			single = true
		case '"':
			double = true
		}
	}
	return single, double
}

// requote rewrites a non-raw body for the quote character to. Escaped quotes
// become bare unless they match to; bare occurrences of to in a single-quoted
// string get escaped.
func requote(body string, to byte, triple bool) string {
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			next := body[i+1]
			i++
			if next != '\'' && next != '"' {
				b.WriteByte(c)
				b.WriteByte(next)
				continue
			}
			c = next
		}
		if c == to && !triple {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// interpolation renders an f-string replacement field with its expression
// re-serialized on one line. Self-documenting fields ({x=}) keep their text
// since their whitespace is part of the value.
func (u *unparser) interpolation(id NodeID) string {
	expr := u.tree.ChildByField(id, "expression")
	if expr == NoNode {
		return u.tree.Text(id)
	}
	var b strings.Builder
	b.WriteByte('{')
	for _, c := range u.tree.Nodes[id].Children {
		switch kind := u.tree.Kind(c); {
		case c == expr:
			sub := &unparser{tree: u.tree, verbatimStrings: true}
			sub.node(expr, id, 0)
			sub.flush()
			b.WriteString(strings.Join(sub.lines, " "))
		case kind == "=":
			return u.tree.Text(id)
		case kind == "{" || kind == "}" || kind == KindComment:
		default:
			b.WriteString(u.tree.Text(c))
		}
	}
	b.WriteByte('}')
	return b.String()
}
