package analysis

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/jward/testlens/internal/pyast"
)

// ImportedSymbol is a local name bound by a top-level from-import.
type ImportedSymbol struct {
	Name   string `json:"name"`
	Module string `json:"module"`
	Line   int    `json:"line"`
}

// ImportSet maps a local binding to the from-import that introduced it. A
// name imported twice keeps the later import.
type ImportSet map[string]ImportedSymbol

// Names returns the bound names in sorted order.
func (s ImportSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is bound by an import.
func (s ImportSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// ScanImports collects the names bound by from-imports that are direct
// children of the module. Each name binds its alias when present, else its
// imported name. Wildcard imports bind nothing.
func ScanImports(tree *pyast.Tree) ImportSet {
	set := make(ImportSet)
	for _, stmt := range tree.Children(tree.Root) {
		kind := tree.Kind(stmt)
		if kind != pyast.KindImportFrom && kind != pyast.KindFutureImport {
			continue
		}
		module := "__future__"
		if kind == pyast.KindImportFrom {
			module = pyast.Unparse(tree, tree.ChildByField(stmt, "module_name"))
		}
		for _, name := range tree.ChildrenByField(stmt, "name") {
			local := bindingName(tree, name)
			if local == "" {
				continue
			}
			set[local] = ImportedSymbol{
				Name:   local,
				Module: module,
				Line:   tree.Node(name).Span.StartLine,
			}
		}
	}
	return set
}

func bindingName(tree *pyast.Tree, id pyast.NodeID) string {
	switch tree.Kind(id) {
	case pyast.KindAliasedImport:
		if alias := tree.ChildByField(id, "alias"); alias != pyast.NoNode {
			return tree.Text(alias)
		}
		return bindingName(tree, tree.ChildByField(id, "name"))
	case pyast.KindDottedName, pyast.KindIdentifier:
		return pyast.Unparse(tree, id)
	default:
		return ""
	}
}

// ImportScan separates a file that imports nothing from a file that could
// not be parsed.
type ImportScan struct {
	Symbols ImportSet
	Err     error
}

// Compat returns the symbols, treating a parse failure as an empty set.
func (s ImportScan) Compat() ImportSet {
	if s.Err != nil || s.Symbols == nil {
		return ImportSet{}
	}
	return s.Symbols
}

// ScanSource parses src and scans its imports.
func ScanSource(ctx context.Context, parser *pyast.Parser, src []byte) ImportScan {
	tree, err := parser.Parse(ctx, src)
	if err != nil {
		return ImportScan{Symbols: ImportSet{}, Err: err}
	}
	return ImportScan{Symbols: ScanImports(tree)}
}

// CompatLogged is Compat with a warning when a parse failure is masked.
func (s ImportScan) CompatLogged(logger logrus.FieldLogger, path string) ImportSet {
	if s.Err != nil && logger != nil {
		logger.WithFields(logrus.Fields{"path": path, "error": s.Err}).
			Warn("import scan failed; treating file as importing nothing")
	}
	return s.Compat()
}
