package source

import (
	"fmt"
	"sort"
	"sync"

	"github.com/l3aro/go-forward-split/pkg/names"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

// Module is a parsed Python source file.
type Module struct {
	Path string

	tree   *pysyntax.Tree
	nsOnce sync.Once
	ns     *Namespace
}

// Source returns the module's source text.
func (m *Module) Source() []byte {
	return m.tree.Source()
}

// Statements returns the top-level statements of the module.
func (m *Module) Statements() []pysyntax.Node {
	return m.tree.Root().Statements()
}

// Classes returns the top-level classes in source order.
func (m *Module) Classes() []*Class {
	var out []*Class
	for _, stmt := range m.Statements() {
		def, _ := unwrapDecorated(stmt)
		if def.Type() == "class_definition" {
			out = append(out, newClass(def))
		}
	}
	return out
}

// Class finds a top-level class by name.
func (m *Module) Class(name string) (*Class, error) {
	for _, c := range m.Classes() {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("class %s in %s: %w", name, m.Path, ErrNotFound)
}

// Function finds a module-level function by name. Free functions have no
// receiver.
func (m *Module) Function(name string) (*Function, error) {
	for _, stmt := range m.Statements() {
		def, decorators := unwrapDecorated(stmt)
		if def.Type() == "function_definition" && def.Field("name").Text() == name {
			return newFunction(def, decorators, false), nil
		}
	}
	return nil, fmt.Errorf("function %s in %s: %w", name, m.Path, ErrNotFound)
}

// Namespace returns the resolver over the module's top-level bindings.
func (m *Module) Namespace() *Namespace {
	m.nsOnce.Do(func() {
		m.ns = buildNamespace(m.Statements())
	})
	return m.ns
}

// Class is a top-level class definition.
type Class struct {
	Name  string
	Bases []string
	node  pysyntax.Node
}

func newClass(def pysyntax.Node) *Class {
	c := &Class{Name: def.Field("name").Text(), node: def}
	for _, base := range def.Field("superclasses").NamedChildren() {
		c.Bases = append(c.Bases, base.Text())
	}
	return c
}

// Line returns the line of the class statement.
func (c *Class) Line() int {
	return c.node.Line()
}

// Methods lists the method names in source order.
func (c *Class) Methods() []string {
	var out []string
	for _, stmt := range c.node.Field("body").Statements() {
		def, _ := unwrapDecorated(stmt)
		if def.Type() == "function_definition" {
			out = append(out, def.Field("name").Text())
		}
	}
	return out
}

// Method finds a method defined directly in the class body.
func (c *Class) Method(name string) (*Function, error) {
	for _, stmt := range c.node.Field("body").Statements() {
		def, decorators := unwrapDecorated(stmt)
		if def.Type() == "function_definition" && def.Field("name").Text() == name {
			return newFunction(def, decorators, true), nil
		}
	}
	return nil, fmt.Errorf("method %s.%s: %w", c.Name, name, ErrNotFound)
}

// Init returns the __init__ method.
func (c *Class) Init() (*Function, error) {
	return c.Method("__init__")
}

// Forward returns the forward method.
func (c *Class) Forward() (*Function, error) {
	return c.Method("forward")
}

// Attributes lists, sorted, the receiver attributes assigned in __init__.
// Assignments nested in conditionals and loops count.
func (c *Class) Attributes() ([]string, error) {
	init, err := c.Init()
	if err != nil {
		return nil, err
	}
	if init.Receiver == "" {
		return []string{}, nil
	}

	attrs := names.NewSet()
	var walk func(n pysyntax.Node)
	walk = func(n pysyntax.Node) {
		switch n.Type() {
		case "function_definition", "class_definition", "lambda":
			return
		case "assignment", "augmented_assignment":
			collectAttributeTargets(n.Field("left"), init.Receiver, attrs)
		}
		for _, child := range n.NamedChildren() {
			walk(child)
		}
	}
	for _, stmt := range init.Body {
		walk(stmt)
	}
	return attrs.Sorted(), nil
}

func collectAttributeTargets(t pysyntax.Node, receiver string, into names.NameSet) {
	switch t.Kind() {
	case pysyntax.KindAttribute:
		if !names.IsReference(t) {
			return
		}
		p := names.Classify(t)
		if p.Root() == receiver && len(p) > 1 {
			into.Add(p.Key(receiver))
		}
	case pysyntax.KindTuple, pysyntax.KindParenthesized, pysyntax.KindStarred:
		for _, child := range t.NamedChildren() {
			collectAttributeTargets(child, receiver, into)
		}
	}
}

// Function is a function or method definition.
type Function struct {
	Name string
	// Receiver is the first parameter of an instance or class method,
	// empty for free functions and static methods.
	Receiver string
	// Params are the declared parameters, receiver excluded.
	Params     []string
	Decorators []string
	// Body holds the top-level statements, docstring excluded.
	Body      []pysyntax.Node
	Docstring bool
	StartLine int
	EndLine   int

	node pysyntax.Node
}

func newFunction(def pysyntax.Node, decorators []string, method bool) *Function {
	f := &Function{
		Name:       def.Field("name").Text(),
		Decorators: decorators,
		StartLine:  def.Line(),
		EndLine:    def.EndLine(),
		node:       def,
	}

	params := pysyntax.Parameters(def.Field("parameters"))
	static := false
	for _, d := range decorators {
		if d == "staticmethod" {
			static = true
		}
	}
	for i, p := range params {
		if i == 0 && method && !static {
			f.Receiver = p.Name
			continue
		}
		f.Params = append(f.Params, p.Name)
	}

	body := def.Field("body").Statements()
	if len(body) > 0 && body[0].IsDocstring() {
		f.Docstring = true
		body = body[1:]
	}
	f.Body = body
	return f
}

// FindLoop returns the index in Body of the first top-level for loop,
// typically the loop over repeated blocks, or -1.
func (f *Function) FindLoop() int {
	for i, stmt := range f.Body {
		if stmt.Type() == "for_statement" {
			return i
		}
	}
	return -1
}

// unwrapDecorated returns the definition inside a decorated_definition
// together with the decorator expressions, or stmt itself.
func unwrapDecorated(stmt pysyntax.Node) (pysyntax.Node, []string) {
	if stmt.Type() != "decorated_definition" {
		return stmt, nil
	}
	var decorators []string
	for _, child := range stmt.NamedChildren() {
		if child.Type() == "decorator" {
			for _, expr := range child.NamedChildren() {
				decorators = append(decorators, expr.Text())
			}
		}
	}
	return stmt.Field("definition"), decorators
}

// Namespace resolves names bound at module level.
type Namespace struct {
	bound     names.NameSet
	wildcards []string
}

// Resolves reports whether name, or the root of a dotted name, is bound at
// module level. Names possibly brought in by wildcard imports are not
// guessed.
func (n *Namespace) Resolves(name string) bool {
	return n.bound.Has(name) || n.bound.Has(names.ParsePath(name).Root())
}

// Names returns the bound names, sorted.
func (n *Namespace) Names() []string {
	return n.bound.Sorted()
}

// Wildcards lists the modules imported with `from m import *`.
func (n *Namespace) Wildcards() []string {
	out := make([]string, len(n.wildcards))
	copy(out, n.wildcards)
	sort.Strings(out)
	return out
}

func buildNamespace(stmts []pysyntax.Node) *Namespace {
	ns := &Namespace{bound: names.NewSet()}
	ns.collect(stmts)
	return ns
}

func (ns *Namespace) collect(stmts []pysyntax.Node) {
	for _, stmt := range stmts {
		ns.statement(stmt)
	}
}

func (ns *Namespace) statement(stmt pysyntax.Node) {
	switch stmt.Type() {
	case "import_statement", "import_from_statement":
		for _, name := range stmt.FieldChildren("name") {
			switch name.Type() {
			case "dotted_name":
				if stmt.Type() == "import_statement" {
					ns.bound.Add(name.ChildOfType("identifier").Text())
				} else {
					ids := name.NamedChildren()
					ns.bound.Add(ids[len(ids)-1].Text())
				}
			case "aliased_import":
				ns.bound.Add(name.Field("alias").Text())
			}
		}
		if stmt.ChildOfType("wildcard_import").Type() != "" {
			ns.wildcards = append(ns.wildcards, stmt.Field("module_name").Text())
		}
	case "function_definition", "class_definition":
		ns.bound.Add(stmt.Field("name").Text())
	case "decorated_definition":
		ns.statement(stmt.Field("definition"))
	case "expression_statement":
		for _, child := range stmt.NamedChildren() {
			for child.Type() == "assignment" {
				ns.target(child.Field("left"))
				child = child.Field("right")
			}
		}
	case "for_statement":
		ns.target(stmt.Field("left"))
		ns.blocks(stmt)
	case "with_statement":
		ns.blocks(stmt)
	case "if_statement", "try_statement", "while_statement":
		ns.blocks(stmt)
	}
}

// blocks collects the bodies of a compound statement and of its clauses.
func (ns *Namespace) blocks(stmt pysyntax.Node) {
	for _, child := range stmt.NamedChildren() {
		switch {
		case child.Type() == "block":
			ns.collect(child.Statements())
		case child.Type() == "elif_clause", child.Type() == "else_clause",
			child.Type() == "except_clause", child.Type() == "except_group_clause",
			child.Type() == "finally_clause":
			ns.blocks(child)
		}
	}
}

func (ns *Namespace) target(t pysyntax.Node) {
	switch t.Kind() {
	case pysyntax.KindName:
		ns.bound.Add(t.Text())
	case pysyntax.KindTuple, pysyntax.KindParenthesized, pysyntax.KindStarred:
		for _, child := range t.NamedChildren() {
			ns.target(child)
		}
	}
}
