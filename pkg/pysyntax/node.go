// Package pysyntax wraps tree-sitter Python trees in the small node vocabulary
// the flow analyzers work with. Nodes are read-only views into a parsed tree.
package pysyntax

import (
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind is the analyzer-level classification of a syntax node.
type Kind int

const (
	KindOther Kind = iota
	KindName
	KindAttribute
	KindSubscript
	KindTuple
	KindParenthesized
	KindStarred
	KindAssignment
	KindAugAssignment
	KindIf
	KindFor
	KindWhile
	KindFunctionDef
	KindClassDef
	KindDecorated
	KindLambda
	KindComprehension
	KindNamedExpr
	KindKeywordArgument
	KindReturn
	KindExpression
	KindWith
	KindImport
	KindGlobal
	KindNonlocal
	KindReadOnly
	KindNoop
	KindBlock
	KindUnsupported
)

var kindNames = [...]string{
	KindOther:           "other",
	KindName:            "name",
	KindAttribute:       "attribute",
	KindSubscript:       "subscript",
	KindTuple:           "tuple",
	KindParenthesized:   "parenthesized",
	KindStarred:         "starred",
	KindAssignment:      "assignment",
	KindAugAssignment:   "augmented_assignment",
	KindIf:              "if",
	KindFor:             "for",
	KindWhile:           "while",
	KindFunctionDef:     "function_definition",
	KindClassDef:        "class_definition",
	KindDecorated:       "decorated_definition",
	KindLambda:          "lambda",
	KindComprehension:   "comprehension",
	KindNamedExpr:       "named_expression",
	KindKeywordArgument: "keyword_argument",
	KindReturn:          "return",
	KindExpression:      "expression_statement",
	KindWith:            "with",
	KindImport:          "import",
	KindGlobal:          "global",
	KindNonlocal:        "nonlocal",
	KindReadOnly:        "read_only_statement",
	KindNoop:            "noop",
	KindBlock:           "block",
	KindUnsupported:     "unsupported",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

var kindByType = map[string]Kind{
	"identifier":               KindName,
	"attribute":                KindAttribute,
	"subscript":                KindSubscript,
	"pattern_list":             KindTuple,
	"tuple_pattern":            KindTuple,
	"list_pattern":             KindTuple,
	"expression_list":          KindTuple,
	"tuple":                    KindTuple,
	"list":                     KindTuple,
	"parenthesized_expression": KindParenthesized,
	"list_splat_pattern":       KindStarred,
	"list_splat":               KindStarred,
	"assignment":               KindAssignment,
	"augmented_assignment":     KindAugAssignment,
	"if_statement":             KindIf,
	"for_statement":            KindFor,
	"while_statement":          KindWhile,
	"function_definition":      KindFunctionDef,
	"class_definition":         KindClassDef,
	"decorated_definition":     KindDecorated,
	"lambda":                   KindLambda,
	"list_comprehension":       KindComprehension,
	"set_comprehension":        KindComprehension,
	"dictionary_comprehension": KindComprehension,
	"generator_expression":     KindComprehension,
	"named_expression":         KindNamedExpr,
	"keyword_argument":         KindKeywordArgument,
	"return_statement":         KindReturn,
	"expression_statement":     KindExpression,
	"with_statement":           KindWith,
	"import_statement":         KindImport,
	"import_from_statement":    KindImport,
	"global_statement":         KindGlobal,
	"nonlocal_statement":       KindNonlocal,
	"raise_statement":          KindReadOnly,
	"assert_statement":         KindReadOnly,
	"pass_statement":           KindNoop,
	"break_statement":          KindNoop,
	"continue_statement":       KindNoop,
	"comment":                  KindNoop,
	"block":                    KindBlock,
	"try_statement":            KindUnsupported,
	"match_statement":          KindUnsupported,
	"delete_statement":         KindUnsupported,
	"print_statement":          KindUnsupported,
	"exec_statement":           KindUnsupported,
	"type_alias_statement":     KindUnsupported,
	"future_import_statement":  KindUnsupported,
	"ERROR":                    KindUnsupported,
}

// Node is a borrowed view of a tree-sitter node together with the source it
// was parsed from. The zero value is a nil node.
type Node struct {
	raw *sitter.Node
	src []byte
}

// Wrap builds a Node from a raw tree-sitter node and its source bytes.
func Wrap(raw *sitter.Node, src []byte) Node {
	return Node{raw: raw, src: src}
}

// IsNil reports whether the node is absent.
func (n Node) IsNil() bool {
	return n.raw == nil || n.raw.IsNull()
}

// Type returns the tree-sitter grammar type of the node.
func (n Node) Type() string {
	if n.IsNil() {
		return ""
	}
	return n.raw.Type()
}

// Kind classifies the node for the analyzers.
func (n Node) Kind() Kind {
	if n.IsNil() {
		return KindOther
	}
	if k, ok := kindByType[n.raw.Type()]; ok {
		return k
	}
	return KindOther
}

// IsStatement reports whether the grammar type is a statement.
func (n Node) IsStatement() bool {
	t := n.Type()
	switch t {
	case "function_definition", "class_definition", "decorated_definition":
		return true
	}
	return strings.HasSuffix(t, "_statement")
}

// Text returns the exact source text covered by the node.
func (n Node) Text() string {
	if n.IsNil() {
		return ""
	}
	start, end := n.raw.StartByte(), n.raw.EndByte()
	if start >= uint32(len(n.src)) || end > uint32(len(n.src)) {
		return ""
	}
	return string(n.src[start:end])
}

// Line returns the 1-based start line.
func (n Node) Line() int {
	if n.IsNil() {
		return 0
	}
	return int(n.raw.StartPoint().Row) + 1
}

// EndLine returns the 1-based end line.
func (n Node) EndLine() int {
	if n.IsNil() {
		return 0
	}
	return int(n.raw.EndPoint().Row) + 1
}

// Column returns the 1-based start column.
func (n Node) Column() int {
	if n.IsNil() {
		return 0
	}
	return int(n.raw.StartPoint().Column) + 1
}

// Field returns the first child stored under the given grammar field.
func (n Node) Field(name string) Node {
	if n.IsNil() {
		return Node{}
	}
	return Node{raw: n.raw.ChildByFieldName(name), src: n.src}
}

// FieldChildren returns every child stored under the given grammar field,
// in source order. Fields such as if/elif alternatives repeat.
func (n Node) FieldChildren(name string) []Node {
	if n.IsNil() {
		return nil
	}
	var out []Node
	for i := 0; i < int(n.raw.ChildCount()); i++ {
		if n.raw.FieldNameForChild(i) != name {
			continue
		}
		if child := n.raw.Child(i); child != nil {
			out = append(out, Node{raw: child, src: n.src})
		}
	}
	return out
}

// NamedChildren returns the named children, comments excluded.
func (n Node) NamedChildren() []Node {
	if n.IsNil() {
		return nil
	}
	out := make([]Node, 0, n.raw.NamedChildCount())
	for i := 0; i < int(n.raw.NamedChildCount()); i++ {
		child := n.raw.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, Node{raw: child, src: n.src})
	}
	return out
}

// ChildOfType returns the first named child with the given grammar type.
func (n Node) ChildOfType(childType string) Node {
	for _, child := range n.NamedChildren() {
		if child.Type() == childType {
			return child
		}
	}
	return Node{}
}

// Statements returns the statements of a block or module node.
func (n Node) Statements() []Node {
	return n.NamedChildren()
}

// Dedented returns the node text with the node's own start column removed
// from every continuation line, so the text reads as if it started at
// column zero. Lines inside a multi-line string literal are kept verbatim.
func (n Node) Dedented() string {
	text := n.Text()
	col := n.Column() - 1
	if col <= 0 || !strings.Contains(text, "\n") {
		return text
	}
	literal := make(map[int]bool)
	for _, i := range n.LiteralLines() {
		literal[i] = true
	}
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		if literal[i] {
			continue
		}
		lines[i] = trimIndent(lines[i], col)
	}
	return strings.Join(lines, "\n")
}

// LiteralLines returns, sorted and relative to the node's first line, the
// lines that begin inside a string literal. Their leading whitespace is part
// of the string value.
func (n Node) LiteralLines() []int {
	if n.IsNil() {
		return nil
	}
	base := int(n.raw.StartPoint().Row)
	seen := make(map[int]bool)
	var walk func(*sitter.Node)
	walk = func(raw *sitter.Node) {
		if raw.StartPoint().Row == raw.EndPoint().Row {
			return
		}
		if raw.Type() == "string" {
			for row := int(raw.StartPoint().Row) + 1; row <= int(raw.EndPoint().Row); row++ {
				seen[row-base] = true
			}
			return
		}
		for i := 0; i < int(raw.ChildCount()); i++ {
			if child := raw.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(n.raw)

	out := make([]int, 0, len(seen))
	for row := range seen {
		out = append(out, row)
	}
	sort.Ints(out)
	return out
}

func trimIndent(line string, width int) string {
	i := 0
	for i < width && i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	if i < width && i < len(line) {
		return line
	}
	return line[i:]
}

// IsDocstring reports whether a statement is a bare string expression.
func (n Node) IsDocstring() bool {
	if n.Type() != "expression_statement" {
		return false
	}
	children := n.NamedChildren()
	if len(children) != 1 {
		return false
	}
	t := children[0].Type()
	return t == "string" || t == "concatenated_string"
}
