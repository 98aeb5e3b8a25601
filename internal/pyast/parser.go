package pyast

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// DefaultMaxFileSize bounds the source size Parse accepts.
const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter Python grammar, initialized on first use.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = python.GetLanguage()
	})
	return grammar
}

// IsPythonFile reports whether path has a Python source extension.
func IsPythonFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".py")
}

// SyntaxError reports source that is not valid Python.
type SyntaxError struct {
	Path string
	Line int // 1-based
	Col  int // 0-based
	Msg  string
}

func (e *SyntaxError) Error() string {
	loc := fmt.Sprintf("line %d, column %d", e.Line, e.Col)
	if e.Path != "" {
		loc = e.Path + ": " + loc
	}
	return fmt.Sprintf("syntax error: %s: %s", loc, e.Msg)
}

// ReadError reports a source file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Parser turns Python source into Trees. A Parser is safe for concurrent use;
// each call creates its own tree-sitter parser.
type Parser struct {
	maxFileSize int
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxFileSize sets the largest source Parse accepts, in bytes.
func WithMaxFileSize(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// NewParser creates a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads and parses the file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Tree, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	tree, err := p.Parse(ctx, src)
	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.Path = path
		}
		return nil, err
	}
	return tree, nil
}

// Parse parses src. Source containing syntax errors fails with *SyntaxError
// positioned at the first ERROR or MISSING node.
func (p *Parser) Parse(ctx context.Context, src []byte) (*Tree, error) {
	if len(src) > p.maxFileSize {
		return nil, &SyntaxError{Line: 1, Msg: fmt.Sprintf("source size %d exceeds limit %d", len(src), p.maxFileSize)}
	}
	if !utf8.Valid(src) {
		return nil, &SyntaxError{Line: 1, Msg: "source is not valid UTF-8"}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	tsTree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("pyast: tree-sitter parse: %w", err)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root == nil {
		return nil, &SyntaxError{Line: 1, Msg: "empty parse tree"}
	}

	b := &builder{src: src}
	tree := &Tree{Source: src}
	tree.Root = b.convert(root, "")
	tree.Nodes = b.nodes

	if root.HasError() && b.firstErr != nil {
		return nil, b.firstErr
	}
	return tree, nil
}

// builder copies a tree-sitter tree into the arena in pre-order.
type builder struct {
	src      []byte
	nodes    []Node
	firstErr *SyntaxError
}

func (b *builder) convert(n *sitter.Node, field string) NodeID {
	id := NodeID(len(b.nodes))
	start, end := n.StartPoint(), n.EndPoint()
	b.nodes = append(b.nodes, Node{
		Kind:  n.Type(),
		Named: n.IsNamed(),
		Field: field,
		Span: Span{
			StartByte: n.StartByte(),
			EndByte:   n.EndByte(),
			StartLine: int(start.Row) + 1,
			StartCol:  int(start.Column),
			EndLine:   int(end.Row) + 1,
			EndCol:    int(end.Column),
		},
	})

	if b.firstErr == nil && (n.IsError() || n.IsMissing()) {
		msg := "invalid syntax"
		if n.IsMissing() {
			msg = fmt.Sprintf("missing %q", n.Type())
		}
		b.firstErr = &SyntaxError{Line: int(start.Row) + 1, Col: int(start.Column), Msg: msg}
	}

	count := int(n.ChildCount())
	children := make([]NodeID, 0, count)
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		children = append(children, b.convert(child, n.FieldNameForChild(i)))
	}
	b.nodes[id].Children = children

	switch b.nodes[id].Kind {
	case KindIdentifier:
		b.nodes[id].Name = n.Content(b.src)
	case KindFunctionDefinition, KindClassDefinition:
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			b.nodes[id].Name = nameNode.Content(b.src)
		}
	}
	return id
}
