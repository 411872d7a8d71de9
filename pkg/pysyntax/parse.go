package pysyntax

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is returned when source text does not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// SyntaxError reports the first ERROR or MISSING node of a parse.
type SyntaxError struct {
	Line    int
	Column  int
	Snippet string
}

func (e *SyntaxError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("syntax error at line %d, column %d near %q", e.Line, e.Column, e.Snippet)
	}
	return fmt.Sprintf("syntax error at line %d, column %d", e.Line, e.Column)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Tree is a parsed Python module.
type Tree struct {
	tree *sitter.Tree
	src  []byte
}

// NewParser creates a tree-sitter parser for Python.
func NewParser() *sitter.Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return parser
}

// Parse parses Python source. Trees containing syntax errors are rejected,
// since analyzing a partial tree would produce wrong read/write sets.
func Parse(src []byte) (*Tree, error) {
	parser := NewParser()
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parsing source: no tree produced")
	}

	root := tree.RootNode()
	if root.HasError() {
		serr := firstError(Wrap(root, src))
		tree.Close()
		return nil, serr
	}

	return &Tree{tree: tree, src: src}, nil
}

// ParseStatements parses src and returns its top-level statements.
func ParseStatements(src string) ([]Node, error) {
	tree, err := Parse([]byte(src))
	if err != nil {
		return nil, err
	}
	return tree.Root().Statements(), nil
}

// Root returns the module node.
func (t *Tree) Root() Node {
	return Wrap(t.tree.RootNode(), t.src)
}

// Source returns the bytes the tree was parsed from.
func (t *Tree) Source() []byte {
	return t.src
}

// Close releases the tree. Nodes obtained from it must not be used afterwards.
func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

func firstError(n Node) *SyntaxError {
	var found *SyntaxError
	var walk func(raw *sitter.Node)
	walk = func(raw *sitter.Node) {
		if found != nil || raw == nil {
			return
		}
		if raw.IsError() || raw.IsMissing() {
			node := Wrap(raw, n.src)
			snippet := node.Text()
			if len(snippet) > 40 {
				snippet = snippet[:40]
			}
			found = &SyntaxError{Line: node.Line(), Column: node.Column(), Snippet: snippet}
			return
		}
		if !raw.HasError() {
			return
		}
		for i := 0; i < int(raw.ChildCount()); i++ {
			walk(raw.Child(i))
		}
	}
	walk(n.raw)
	if found == nil {
		found = &SyntaxError{Line: n.Line(), Column: n.Column()}
	}
	return found
}
