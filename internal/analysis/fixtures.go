package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/jward/testlens/internal/pyast"
)

// ParamKind classifies a declared parameter.
type ParamKind string

const (
	ParamPositionalOnly      ParamKind = "positional_only"
	ParamPositionalOrKeyword ParamKind = "positional_or_keyword"
	ParamVarPositional       ParamKind = "var_positional"
	ParamKeywordOnly         ParamKind = "keyword_only"
	ParamVarKeyword          ParamKind = "var_keyword"
)

// Param is one declared parameter of a function definition.
type Param struct {
	Name       string
	Kind       ParamKind
	Annotation string
	HasDefault bool
}

// FunctionInfo describes a test definition handed to a FixtureResolver.
type FunctionInfo struct {
	Index         *ParentIndex
	Node          pyast.NodeID // function_definition
	Name          string
	QualifiedName string
}

func newFunctionInfo(idx *ParentIndex, id pyast.NodeID) FunctionInfo {
	return FunctionInfo{
		Index:         idx,
		Node:          id,
		Name:          idx.Tree().Node(id).Name,
		QualifiedName: idx.QualifiedName(id),
	}
}

// Params returns the declared parameters in order.
func (f FunctionInfo) Params() []Param {
	tree := f.Index.Tree()
	params := tree.ChildByField(f.Node, "parameters")
	if params == pyast.NoNode {
		return nil
	}

	var out []Param
	keywordOnly := false
	for _, c := range tree.NamedChildren(params) {
		p, ok := parseParam(tree, c)
		switch {
		case tree.Kind(c) == "positional_separator":
			for i := range out {
				if out[i].Kind == ParamPositionalOrKeyword {
					out[i].Kind = ParamPositionalOnly
				}
			}
			continue
		case tree.Kind(c) == "keyword_separator":
			keywordOnly = true
			continue
		case !ok:
			// bare "*" in grammars without keyword_separator
			if tree.Kind(c) == "list_splat_pattern" {
				keywordOnly = true
			}
			continue
		}
		if p.Kind == ParamVarPositional {
			keywordOnly = true
		} else if keywordOnly && p.Kind == ParamPositionalOrKeyword {
			p.Kind = ParamKeywordOnly
		}
		out = append(out, p)
	}
	return out
}

func parseParam(tree *pyast.Tree, id pyast.NodeID) (Param, bool) {
	switch tree.Kind(id) {
	case pyast.KindIdentifier:
		return Param{Name: tree.Node(id).Name, Kind: ParamPositionalOrKeyword}, true
	case "default_parameter", "typed_default_parameter":
		name := tree.ChildByField(id, "name")
		if tree.Kind(name) != pyast.KindIdentifier {
			return Param{}, false
		}
		p := Param{Name: tree.Node(name).Name, Kind: ParamPositionalOrKeyword, HasDefault: true}
		if typ := tree.ChildByField(id, "type"); typ != pyast.NoNode {
			p.Annotation = pyast.Unparse(tree, typ)
		}
		return p, true
	case "typed_parameter":
		named := tree.NamedChildren(id)
		if len(named) == 0 {
			return Param{}, false
		}
		p, ok := parseParam(tree, named[0])
		if !ok {
			return Param{}, false
		}
		if typ := tree.ChildByField(id, "type"); typ != pyast.NoNode {
			p.Annotation = pyast.Unparse(tree, typ)
		}
		return p, true
	case "list_splat_pattern":
		if name := firstIdentifier(tree, id); name != "" {
			return Param{Name: name, Kind: ParamVarPositional}, true
		}
	case "dictionary_splat_pattern":
		if name := firstIdentifier(tree, id); name != "" {
			return Param{Name: name, Kind: ParamVarKeyword}, true
		}
	}
	return Param{}, false
}

func firstIdentifier(tree *pyast.Tree, id pyast.NodeID) string {
	for _, c := range tree.NamedChildren(id) {
		if tree.Kind(c) == pyast.KindIdentifier {
			return tree.Node(c).Name
		}
	}
	return ""
}

// Decorators returns the decorator nodes of the definition, outermost first.
func (f FunctionInfo) Decorators() []pyast.NodeID {
	root := f.Index.DefinitionRoot(f.Node)
	if root == f.Node {
		return nil
	}
	var out []pyast.NodeID
	tree := f.Index.Tree()
	for _, c := range tree.Children(root) {
		if tree.Kind(c) == pyast.KindDecorator {
			out = append(out, c)
		}
	}
	return out
}

// DecoratorTexts returns each decorator in canonical form without the "@".
func (f FunctionInfo) DecoratorTexts() []string {
	tree := f.Index.Tree()
	var out []string
	for _, d := range f.Decorators() {
		out = append(out, strings.TrimPrefix(pyast.Unparse(tree, d), "@"))
	}
	return out
}

// Source returns the canonical text of the definition including decorators.
func (f FunctionInfo) Source() string {
	return pyast.Unparse(f.Index.Tree(), f.Index.DefinitionRoot(f.Node))
}

// FixtureResolver derives the fixture names a test depends on.
type FixtureResolver interface {
	ResolveFixtures(ctx context.Context, fn FunctionInfo) ([]string, error)
}

// ParameterResolver reports positional-or-keyword parameter names in
// declaration order, including self.
type ParameterResolver struct{}

func (ParameterResolver) ResolveFixtures(_ context.Context, fn FunctionInfo) ([]string, error) {
	out := []string{}
	for _, p := range fn.Params() {
		if p.Kind == ParamPositionalOrKeyword {
			out = append(out, p.Name)
		}
	}
	return out, nil
}

// DecoratorResolver reports the string arguments of usefixtures decorators
// such as @pytest.mark.usefixtures("db").
type DecoratorResolver struct {
	// Names lists the decorator callee suffixes that declare fixtures.
	// Defaults to "usefixtures".
	Names []string
}

func (r DecoratorResolver) ResolveFixtures(_ context.Context, fn FunctionInfo) ([]string, error) {
	names := r.Names
	if len(names) == 0 {
		names = []string{"usefixtures"}
	}
	tree := fn.Index.Tree()

	out := []string{}
	for _, d := range fn.Decorators() {
		named := tree.NamedChildren(d)
		if len(named) == 0 || tree.Kind(named[0]) != pyast.KindCall {
			continue
		}
		call := named[0]
		if !matchesCallee(pyast.Unparse(tree, tree.ChildByField(call, "function")), names) {
			continue
		}
		for _, arg := range tree.NamedChildren(tree.ChildByField(call, "arguments")) {
			if tree.Kind(arg) != pyast.KindString {
				continue
			}
			if v, ok := StringLiteral(tree.Text(arg)); ok {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func matchesCallee(callee string, names []string) bool {
	last := callee
	if i := strings.LastIndex(callee, "."); i >= 0 {
		last = callee[i+1:]
	}
	for _, n := range names {
		if callee == n || last == n {
			return true
		}
	}
	return false
}

// StringLiteral returns the value of a plain Python string literal. Byte,
// formatted and escaped strings are rejected.
func StringLiteral(lit string) (string, bool) {
	i := 0
	for i < len(lit) && strings.ContainsRune("rRuU", rune(lit[i])) {
		i++
	}
	body := lit[i:]
	raw := i > 0 && strings.ContainsAny(lit[:i], "rR")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			v := body[len(q) : len(body)-len(q)]
			if !raw && strings.Contains(v, `\`) {
				return "", false
			}
			return v, true
		}
	}
	return "", false
}

// AnnotationPrefix introduces an explicit fixture list in a comment.
const AnnotationPrefix = "fixtures:"

// AnnotationResolver reports fixtures listed in "# fixtures: a, b" comments
// on the lines directly above the definition or its decorators.
type AnnotationResolver struct{}

func (AnnotationResolver) ResolveFixtures(_ context.Context, fn FunctionInfo) ([]string, error) {
	tree := fn.Index.Tree()
	start := tree.Node(fn.Index.DefinitionRoot(fn.Node)).Span.StartLine
	lines := strings.Split(string(tree.Source), "\n")

	var groups [][]string
	for ln := start - 2; ln >= 0 && ln < len(lines); ln-- {
		text := strings.TrimSpace(lines[ln])
		if !strings.HasPrefix(text, "#") {
			break
		}
		body := strings.TrimSpace(strings.TrimPrefix(text, "#"))
		if !strings.HasPrefix(body, AnnotationPrefix) {
			continue
		}
		var names []string
		for _, n := range strings.Split(strings.TrimPrefix(body, AnnotationPrefix), ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		groups = append(groups, names)
	}

	out := []string{}
	for i := len(groups) - 1; i >= 0; i-- {
		out = append(out, groups[i]...)
	}
	return out, nil
}

// ChainResolver concatenates the results of several resolvers, keeping the
// first occurrence of each name.
type ChainResolver []FixtureResolver

func (c ChainResolver) ResolveFixtures(ctx context.Context, fn FunctionInfo) ([]string, error) {
	out := []string{}
	seen := make(map[string]bool)
	for _, r := range c {
		names, err := r.ResolveFixtures(ctx, fn)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out, nil
}

// ResolverByName returns the built-in resolver registered under name.
func ResolverByName(name string) (FixtureResolver, error) {
	switch name {
	case "parameters":
		return ParameterResolver{}, nil
	case "decorators":
		return DecoratorResolver{}, nil
	case "annotations":
		return AnnotationResolver{}, nil
	default:
		return nil, fmt.Errorf("analysis: unknown fixture resolver %q", name)
	}
}
