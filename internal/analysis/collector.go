package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/testlens/internal/pyast"
)

// DefaultTestPrefix marks a function definition as a test.
const DefaultTestPrefix = "test_"

// NestingMode controls what happens to the current test when a function
// definition is exited.
type NestingMode int

const (
	// NestingFlat clears the current test on leaving any function definition,
	// so calls after a nested definition inside a test are dropped.
	NestingFlat NestingMode = iota
	// NestingStack restores the context that was active before entering the
	// definition.
	NestingStack
)

func (m NestingMode) String() string {
	switch m {
	case NestingFlat:
		return "flat"
	case NestingStack:
		return "stack"
	default:
		return fmt.Sprintf("NestingMode(%d)", int(m))
	}
}

// ParseNestingMode parses "flat" or "stack".
func ParseNestingMode(s string) (NestingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flat":
		return NestingFlat, nil
	case "stack":
		return NestingStack, nil
	default:
		return NestingFlat, fmt.Errorf("analysis: unknown nesting mode %q", s)
	}
}

// Limitation names a known recall bound of call attribution.
type Limitation string

const (
	// LimitationAttributeCalls: obj.method() and mod.func() are never
	// attributed, only calls through a bare name.
	LimitationAttributeCalls Limitation = "attribute-calls"
	// LimitationModuleImports: names reached through "import m" or
	// "import m as y" are not tracked.
	LimitationModuleImports Limitation = "module-imports"
	// LimitationTransitiveCalls: a test is associated only with names it calls
	// directly.
	LimitationTransitiveCalls Limitation = "transitive-calls"
)

// Limitations lists every limitation of call attribution.
func Limitations() []Limitation {
	return []Limitation{LimitationAttributeCalls, LimitationModuleImports, LimitationTransitiveCalls}
}

// TestProfile is what one test calls and which fixtures it requests.
type TestProfile struct {
	Name     string   `json:"-" yaml:"-"`
	Calls    []string `json:"calls" yaml:"calls"`
	Fixtures []string `json:"fixtures" yaml:"fixtures"`

	calls map[string]struct{}
}

func newTestProfile(name string) *TestProfile {
	return &TestProfile{
		Name:     name,
		Calls:    []string{},
		Fixtures: []string{},
		calls:    make(map[string]struct{}),
	}
}

// CallsName reports whether the test calls name.
func (p *TestProfile) CallsName(name string) bool {
	for _, c := range p.Calls {
		if c == name {
			return true
		}
	}
	return false
}

func (p *TestProfile) addCall(name string) {
	if _, ok := p.calls[name]; ok {
		return
	}
	p.calls[name] = struct{}{}
	p.Calls = append(p.Calls, name)
}

// Collector attributes bare-name calls to the test that contains them.
// The zero value uses DefaultTestPrefix, NestingFlat and ParameterResolver.
type Collector struct {
	Prefix   string
	Nesting  NestingMode
	Resolver FixtureResolver
}

// IsTest reports whether a bare definition name marks a test.
func (c *Collector) IsTest(name string) bool {
	return strings.HasPrefix(name, c.prefix())
}

func (c *Collector) prefix() string {
	if c.Prefix == "" {
		return DefaultTestPrefix
	}
	return c.Prefix
}

// Collect walks the tree once and returns a profile per test, keyed by
// qualified name. A test defined twice keeps only the later profile. Calls
// are sorted.
func (c *Collector) Collect(ctx context.Context, idx *ParentIndex) (map[string]*TestProfile, error) {
	resolver := c.Resolver
	if resolver == nil {
		resolver = ParameterResolver{}
	}
	tree := idx.Tree()
	profiles := make(map[string]*TestProfile)

	var (
		current *TestProfile
		stack   []*TestProfile
		walkErr error
	)

	record := func(call pyast.NodeID) {
		if current == nil {
			return
		}
		if callee := bareCallee(tree, call); callee != "" {
			current.addCall(callee)
		}
	}

	enter := func(id pyast.NodeID) bool {
		if walkErr != nil {
			return false
		}
		switch tree.Kind(id) {
		case pyast.KindDecorator:
			// A test's decorators are walked with the test as context.
			def := tree.ChildByField(idx.Parent(id), "definition")
			if tree.Kind(def) == pyast.KindFunctionDefinition && c.IsTest(tree.Node(def).Name) {
				return false
			}
		case pyast.KindFunctionDefinition:
			stack = append(stack, current)
			if !c.IsTest(tree.Node(id).Name) {
				return true
			}
			fn := newFunctionInfo(idx, id)
			profile := newTestProfile(fn.QualifiedName)
			fixtures, err := resolver.ResolveFixtures(ctx, fn)
			if err != nil {
				walkErr = err
				return false
			}
			if fixtures != nil {
				profile.Fixtures = fixtures
			}
			profiles[fn.QualifiedName] = profile
			current = profile
			for _, d := range fn.Decorators() {
				tree.Walk(d, func(n pyast.NodeID) bool {
					if tree.Kind(n) == pyast.KindCall {
						record(n)
					}
					return true
				})
			}
		case pyast.KindCall:
			record(id)
		}
		return true
	}

	exit := func(id pyast.NodeID) {
		if tree.Kind(id) != pyast.KindFunctionDefinition {
			return
		}
		prev := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.Nesting == NestingStack {
			current = prev
		} else {
			current = nil
		}
	}

	tree.Inspect(tree.Root, enter, exit)
	if walkErr != nil {
		return nil, walkErr
	}

	for _, p := range profiles {
		sort.Strings(p.Calls)
	}
	return profiles, nil
}

// bareCallee returns the name a call invokes when its callee is a plain
// identifier, possibly parenthesized, and "" otherwise.
func bareCallee(tree *pyast.Tree, call pyast.NodeID) string {
	callee := tree.ChildByField(call, "function")
	for tree.Kind(callee) == "parenthesized_expression" {
		inner := tree.NamedChildren(callee)
		if len(inner) != 1 {
			return ""
		}
		callee = inner[0]
	}
	if tree.Kind(callee) != pyast.KindIdentifier {
		return ""
	}
	return tree.Node(callee).Name
}
