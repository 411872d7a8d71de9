package pysyntax

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatements(t *testing.T) {
	stmts, err := ParseStatements("x = 1\n# note\ny = x\n")
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	assert.Equal(t, KindExpression, stmts[0].Kind())
	assert.Equal(t, KindAssignment, stmts[0].NamedChildren()[0].Kind())
	assert.Equal(t, 1, stmts[0].Line())
	assert.Equal(t, 3, stmts[1].Line())
	assert.Equal(t, "y = x", stmts[1].Text())
	assert.True(t, stmts[1].IsStatement())
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte("x = (1\ny = 2\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))

	var serr *SyntaxError
	require.True(t, errors.As(err, &serr))
	assert.Greater(t, serr.Line, 0)
}

func TestParameters(t *testing.T) {
	stmts, err := ParseStatements("def f(self, a, b=1, *args, c: int = 2, d: str, **kw):\n    pass\n")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	params := Parameters(stmts[0].Field("parameters"))
	var got []string
	for _, p := range params {
		got = append(got, p.Name)
	}
	assert.Equal(t, []string{"self", "a", "b", "args", "c", "d", "kw"}, got)
	assert.True(t, params[1].Default.IsNil())
	assert.Equal(t, "1", params[2].Default.Text())
	assert.Equal(t, "2", params[4].Default.Text())
}

func TestIsDocstring(t *testing.T) {
	stmts, err := ParseStatements("\"\"\"Doc.\"\"\"\nx = 1\n'a' 'b'\n")
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	assert.True(t, stmts[0].IsDocstring())
	assert.False(t, stmts[1].IsDocstring())
	assert.True(t, stmts[2].IsDocstring())
}

func TestDedented(t *testing.T) {
	stmts, err := ParseStatements("if a:\n    x = [\n        1,\n    ]\n")
	require.NoError(t, err)

	inner := stmts[0].Field("consequence").Statements()
	require.Len(t, inner, 1)
	assert.Equal(t, 5, inner[0].Column())
	assert.Equal(t, "x = [\n    1,\n]", inner[0].Dedented())
}

func TestDedented_KeepsStringLiteralLines(t *testing.T) {
	src := "if a:\n    doc = \"\"\"first\n  second\n\n        deep\"\"\"\n"
	stmts, err := ParseStatements(src)
	require.NoError(t, err)

	inner := stmts[0].Field("consequence").Statements()
	require.Len(t, inner, 1)
	assert.Equal(t, []int{1, 2, 3}, inner[0].LiteralLines())
	assert.Equal(t, "doc = \"\"\"first\n  second\n\n        deep\"\"\"", inner[0].Dedented())
}

func TestLiteralLines_MixedStatement(t *testing.T) {
	stmts, err := ParseStatements("x = f(\n    \"\"\"a\nb\"\"\",\n    1,\n)\n")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	assert.Equal(t, []int{2}, stmts[0].LiteralLines())

	single, err := ParseStatements("x = 'a'\n")
	require.NoError(t, err)
	assert.Empty(t, single[0].LiteralLines())
}

func TestFieldChildren(t *testing.T) {
	stmts, err := ParseStatements("if a:\n    pass\nelif b:\n    pass\nelif c:\n    pass\nelse:\n    pass\n")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	assert.Equal(t, KindIf, stmts[0].Kind())
	alts := stmts[0].FieldChildren("alternative")
	require.Len(t, alts, 3)
	assert.Equal(t, "elif_clause", alts[0].Type())
	assert.Equal(t, "else_clause", alts[2].Type())
}

func TestNilNode(t *testing.T) {
	var n Node
	assert.True(t, n.IsNil())
	assert.Equal(t, "", n.Text())
	assert.Equal(t, "", n.Type())
	assert.Equal(t, KindOther, n.Kind())
	assert.Equal(t, 0, n.Line())
	assert.True(t, n.Field("body").IsNil())
	assert.Empty(t, n.NamedChildren())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "name", KindName.String())
	assert.Equal(t, "unsupported", KindUnsupported.String())
	assert.Equal(t, "unknown", Kind(999).String())
}

func TestUnsupportedKinds(t *testing.T) {
	stmts, err := ParseStatements("try:\n    pass\nexcept E:\n    pass\ndel x\n")
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	for _, s := range stmts {
		assert.Equal(t, KindUnsupported, s.Kind(), s.Type())
	}
}
