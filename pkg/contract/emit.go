package contract

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

// FunctionDef is a synthesized Python function ready to be placed in a
// class body.
type FunctionDef struct {
	Name   string      `json:"name" yaml:"name" msgpack:"name"`
	Params []string    `json:"params" yaml:"params" msgpack:"params"`
	Body   []Statement `json:"body" yaml:"body" msgpack:"body"`
	// Return is the appended return statement; empty when the body already
	// ends in one.
	Return string `json:"return,omitempty" yaml:"return,omitempty" msgpack:"return,omitempty"`
}

// Statement is the dedented source of one body statement. Literal lists the
// lines, counted from zero, that lie inside a string literal and must not be
// re-indented.
type Statement struct {
	Text    string `json:"text" yaml:"text" msgpack:"text"`
	Literal []int  `json:"literal,omitempty" yaml:"literal,omitempty" msgpack:"literal,omitempty"`
}

// ReturnTuple renders the return statement yielding names as a tuple.
func ReturnTuple(items []string) string {
	switch len(items) {
	case 0:
		return "return ()"
	case 1:
		return fmt.Sprintf("return (%s,)", items[0])
	}
	return fmt.Sprintf("return (%s)", strings.Join(items, ", "))
}

// FunctionDef builds the definition realizing c.
func (c Contract) FunctionDef() FunctionDef {
	def := FunctionDef{
		Name:   c.Name,
		Params: c.Parameters,
		Body:   make([]Statement, 0, len(c.Body)),
	}
	for _, stmt := range c.Body {
		def.Body = append(def.Body, Statement{
			Text:    strings.TrimRight(stmt.Dedented(), " \t\r\n"),
			Literal: stmt.LiteralLines(),
		})
	}
	if !c.TailReturn {
		def.Return = ReturnTuple(c.Returns)
	}
	return def
}

// Render produces Python source with the body indented by indent spaces.
func (f FunctionDef) Render(indent int) string {
	pad := strings.Repeat(" ", indent)

	var b strings.Builder
	fmt.Fprintf(&b, "def %s(%s):\n", f.Name, strings.Join(f.Params, ", "))

	lines := 0
	for _, stmt := range f.Body {
		literal := make(map[int]bool, len(stmt.Literal))
		for _, i := range stmt.Literal {
			literal[i] = true
		}
		for i, line := range strings.Split(stmt.Text, "\n") {
			if literal[i] {
				b.WriteString(line)
				b.WriteString("\n")
				continue
			}
			if strings.TrimSpace(line) == "" {
				b.WriteString("\n")
				continue
			}
			b.WriteString(pad)
			b.WriteString(line)
			b.WriteString("\n")
		}
		lines++
	}
	if f.Return != "" {
		b.WriteString(pad)
		b.WriteString(f.Return)
		b.WriteString("\n")
		lines++
	}
	if lines == 0 {
		b.WriteString(pad)
		b.WriteString("pass\n")
	}
	return b.String()
}

// Verify re-parses the rendered definition. It does not compile or run it.
func (f FunctionDef) Verify(indent int) error {
	tree, err := pysyntax.Parse([]byte(f.Render(indent)))
	if err != nil {
		return fmt.Errorf("verifying %s: %w", f.Name, err)
	}
	tree.Close()
	return nil
}
