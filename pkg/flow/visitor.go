package flow

import (
	"github.com/l3aro/go-forward-split/pkg/names"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

// DefaultReceiver is the conventional name of a method's instance parameter.
const DefaultReceiver = "self"

type options struct {
	receiver string
}

// Option configures Analyze.
type Option func(*options)

// WithReceiver sets the receiver name whose attribute chains fold to two
// segments. An empty receiver analyzes a free function.
func WithReceiver(receiver string) Option {
	return func(o *options) {
		o.receiver = receiver
	}
}

// capture accumulates the keys read and written while it is active.
type capture struct {
	reads  []string
	writes []string
}

type visitor struct {
	receiver string
	res      *Result
	scopes   scopeStack
	captures []*capture
	// conditional counts the enclosing branch and loop bodies.
	conditional int
	definite    names.NameSet
}

// Analyze runs one forward pass over stmts. The statements are not
// modified and nothing is retained between calls.
func Analyze(stmts []pysyntax.Node, opts ...Option) (*Result, error) {
	o := options{receiver: DefaultReceiver}
	for _, opt := range opts {
		opt(&o)
	}

	v := &visitor{receiver: o.receiver, res: newResult(), definite: make(names.NameSet)}
	v.res.Statements = len(stmts)

	for i, stmt := range stmts {
		last := i == len(stmts)-1
		if last && stmt.Kind() == pysyntax.KindReturn {
			c, err := v.capturing(func() error { return v.statement(stmt) })
			if err != nil {
				return nil, err
			}
			v.res.TailReturn = names.NewSet(c.reads...)
			continue
		}
		if err := v.statement(stmt); err != nil {
			return nil, err
		}
	}

	return v.res, nil
}

func (v *visitor) unsupported(n pysyntax.Node) error {
	return constructError(ErrUnsupportedConstruct, n)
}

func constructError(kind error, n pysyntax.Node) error {
	snippet := n.Text()
	if len(snippet) > 60 {
		snippet = snippet[:60]
	}
	return &ConstructError{
		Kind:     kind,
		NodeType: n.Type(),
		Line:     n.Line(),
		Column:   n.Column(),
		Snippet:  snippet,
	}
}

func (v *visitor) statement(n pysyntax.Node) error {
	switch n.Kind() {
	case pysyntax.KindExpression:
		for _, child := range n.NamedChildren() {
			var err error
			switch child.Kind() {
			case pysyntax.KindAssignment:
				err = v.assignment(child)
			case pysyntax.KindAugAssignment:
				err = v.augmentedAssignment(child)
			default:
				err = v.expr(child)
			}
			if err != nil {
				return err
			}
		}
		return nil
	case pysyntax.KindAssignment:
		return v.assignment(n)
	case pysyntax.KindAugAssignment:
		return v.augmentedAssignment(n)
	case pysyntax.KindIf:
		return v.ifStatement(n)
	case pysyntax.KindFor:
		return v.forStatement(n)
	case pysyntax.KindWhile:
		return v.whileStatement(n)
	case pysyntax.KindFunctionDef, pysyntax.KindClassDef, pysyntax.KindDecorated:
		c, err := v.capturing(func() error { return v.definition(n) })
		if err != nil {
			return err
		}
		v.recordBinding(c, n)
		return nil
	case pysyntax.KindReturn:
		if !v.scopes.nested() {
			v.res.ReturnLines = append(v.res.ReturnLines, n.Line())
		}
		return v.children(n)
	case pysyntax.KindWith:
		return v.withStatement(n)
	case pysyntax.KindImport:
		return v.importStatement(n)
	case pysyntax.KindGlobal, pysyntax.KindNonlocal:
		for _, id := range n.NamedChildren() {
			if id.Kind() != pysyntax.KindName {
				continue
			}
			if v.scopes.nested() {
				v.scopes.declare(id.Text())
			} else {
				v.res.Declared.Add(id.Text())
			}
		}
		return nil
	case pysyntax.KindReadOnly:
		return v.children(n)
	case pysyntax.KindNoop:
		return nil
	case pysyntax.KindBlock:
		return v.block(n)
	case pysyntax.KindUnsupported:
		return v.unsupported(n)
	}

	if n.IsStatement() {
		return v.unsupported(n)
	}
	return v.expr(n)
}

func (v *visitor) block(n pysyntax.Node) error {
	for _, stmt := range n.Statements() {
		if err := v.statement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (v *visitor) children(n pysyntax.Node) error {
	for _, child := range n.NamedChildren() {
		if err := v.expr(child); err != nil {
			return err
		}
	}
	return nil
}

// expr visits an expression in read context.
func (v *visitor) expr(n pysyntax.Node) error {
	if n.IsNil() {
		return nil
	}

	switch n.Kind() {
	case pysyntax.KindName:
		v.read(names.Classify(n), n)
		return nil
	case pysyntax.KindAttribute:
		if names.IsReference(n) {
			v.read(names.Classify(n), n)
			return nil
		}
		// foo().bar: the attribute name itself is not a variable.
		return v.expr(n.Field("object"))
	case pysyntax.KindSubscript:
		// self.layers[i] reads the base path self.layers, then the index.
		return v.children(n)
	case pysyntax.KindLambda:
		return v.lambda(n)
	case pysyntax.KindComprehension:
		return v.comprehension(n)
	case pysyntax.KindNamedExpr:
		if err := v.expr(n.Field("value")); err != nil {
			return err
		}
		v.bindEnclosing(n.Field("name"))
		return nil
	case pysyntax.KindKeywordArgument:
		return v.expr(n.Field("value"))
	case pysyntax.KindNoop:
		return nil
	case pysyntax.KindUnsupported:
		return v.unsupported(n)
	}

	return v.children(n)
}

func (v *visitor) assignment(n pysyntax.Node) error {
	var targets []pysyntax.Node
	cur := n
	for cur.Kind() == pysyntax.KindAssignment {
		targets = append(targets, cur.Field("left"))
		cur = cur.Field("right")
		if cur.IsNil() {
			// Bare annotation such as `x: int` binds nothing.
			return nil
		}
	}
	value := cur

	c, err := v.capturing(func() error {
		if err := v.expr(value); err != nil {
			return err
		}
		for _, target := range targets {
			if err := v.target(target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.recordBinding(c, n)
	return nil
}

// augmentedAssignment treats `t op= v` as `t = t op v`: the target is read
// against the state so far, then the value, then the target is written.
func (v *visitor) augmentedAssignment(n pysyntax.Node) error {
	left := n.Field("left")
	c, err := v.capturing(func() error {
		if err := v.expr(left); err != nil {
			return err
		}
		if err := v.expr(n.Field("right")); err != nil {
			return err
		}
		return v.rebind(left)
	})
	if err != nil {
		return err
	}
	v.recordBinding(c, n)
	return nil
}

// target visits an assignment target in write context.
func (v *visitor) target(t pysyntax.Node) error {
	switch t.Kind() {
	case pysyntax.KindName:
		v.write(names.Classify(t), t)
		return nil
	case pysyntax.KindAttribute, pysyntax.KindSubscript:
		// Mutating obj.attr or obj[i] needs obj to exist already.
		if t.Kind() == pysyntax.KindAttribute {
			obj := t.Field("object")
			if obj.Kind() != pysyntax.KindName || obj.Text() != v.receiver {
				if err := v.expr(obj); err != nil {
					return err
				}
			}
		} else if err := v.children(t); err != nil {
			return err
		}
		return v.rebind(t)
	case pysyntax.KindTuple, pysyntax.KindParenthesized, pysyntax.KindStarred:
		for _, child := range t.NamedChildren() {
			if err := v.target(child); err != nil {
				return err
			}
		}
		return nil
	}
	return v.unsupported(t)
}

// rebind writes the reference a target stands for without re-reading it.
// Subscript targets are decomposed to their base path.
func (v *visitor) rebind(t pysyntax.Node) error {
	switch t.Kind() {
	case pysyntax.KindName, pysyntax.KindAttribute:
		if names.IsReference(t) {
			v.write(names.Classify(t), t)
		}
		return nil
	case pysyntax.KindSubscript:
		base := t.Field("value")
		for base.Kind() == pysyntax.KindSubscript {
			base = base.Field("value")
		}
		if names.IsReference(base) {
			v.write(names.Classify(base), base)
		}
		return nil
	}
	return v.unsupported(t)
}

// iterationTarget binds a loop or comprehension target, which must be a
// name or a flat tuple of names.
func (v *visitor) iterationTarget(t pysyntax.Node) error {
	switch t.Kind() {
	case pysyntax.KindName:
		v.write(names.Classify(t), t)
		return nil
	case pysyntax.KindTuple, pysyntax.KindParenthesized:
		elems := t.NamedChildren()
		for _, elem := range elems {
			if elem.Kind() != pysyntax.KindName {
				return constructError(ErrAmbiguousIterationTarget, t)
			}
		}
		for _, elem := range elems {
			v.write(names.Classify(elem), elem)
		}
		return nil
	}
	return constructError(ErrAmbiguousIterationTarget, t)
}

// ifStatement visits every branch; a name written in any branch counts as
// written for the sequence.
func (v *visitor) ifStatement(n pysyntax.Node) error {
	if err := v.expr(n.Field("condition")); err != nil {
		return err
	}

	v.conditional++
	defer func() { v.conditional-- }()

	if err := v.block(n.Field("consequence")); err != nil {
		return err
	}
	for _, alt := range n.FieldChildren("alternative") {
		switch alt.Type() {
		case "elif_clause":
			if err := v.expr(alt.Field("condition")); err != nil {
				return err
			}
			if err := v.block(alt.Field("consequence")); err != nil {
				return err
			}
		case "else_clause":
			if err := v.block(alt.Field("body")); err != nil {
				return err
			}
		default:
			return v.unsupported(alt)
		}
	}
	return nil
}

func (v *visitor) forStatement(n pysyntax.Node) error {
	v.conditional++
	defer func() { v.conditional-- }()

	c, err := v.capturing(func() error {
		if err := v.expr(n.Field("right")); err != nil {
			return err
		}
		return v.iterationTarget(n.Field("left"))
	})
	if err != nil {
		return err
	}
	v.recordBinding(c, n)

	if err := v.block(n.Field("body")); err != nil {
		return err
	}
	return v.elseClause(n)
}

func (v *visitor) whileStatement(n pysyntax.Node) error {
	if err := v.expr(n.Field("condition")); err != nil {
		return err
	}

	v.conditional++
	defer func() { v.conditional-- }()

	if err := v.block(n.Field("body")); err != nil {
		return err
	}
	return v.elseClause(n)
}

func (v *visitor) elseClause(n pysyntax.Node) error {
	alt := n.Field("alternative")
	if alt.IsNil() {
		return nil
	}
	return v.block(alt.Field("body"))
}

func (v *visitor) withStatement(n pysyntax.Node) error {
	clause := n.ChildOfType("with_clause")
	for _, item := range clause.NamedChildren() {
		if item.Type() != "with_item" {
			continue
		}
		value := item.Field("value")
		if value.Type() != "as_pattern" {
			if err := v.expr(value); err != nil {
				return err
			}
			continue
		}
		if err := v.asPattern(value); err != nil {
			return err
		}
	}
	return v.block(n.Field("body"))
}

func (v *visitor) asPattern(p pysyntax.Node) error {
	c, err := v.capturing(func() error {
		alias := p.Field("alias")
		for _, child := range p.NamedChildren() {
			if child.Type() == alias.Type() {
				continue
			}
			if err := v.expr(child); err != nil {
				return err
			}
		}
		// The alias node replaces the target expression, so a plain name
		// has no children of its own.
		targets := alias.NamedChildren()
		if len(targets) == 0 {
			v.write(names.Path{alias.Text()}, alias)
			return nil
		}
		for _, t := range targets {
			if err := v.target(t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.recordBinding(c, p)
	return nil
}

func (v *visitor) importStatement(n pysyntax.Node) error {
	for _, name := range n.FieldChildren("name") {
		switch name.Type() {
		case "dotted_name":
			// `import a.b` binds a.
			if first := name.ChildOfType("identifier"); !first.IsNil() {
				v.write(names.Path{first.Text()}, first)
			}
		case "aliased_import":
			alias := name.Field("alias")
			v.write(names.Path{alias.Text()}, alias)
		default:
			return v.unsupported(name)
		}
	}
	return nil
}

// definition handles def and class statements. Decorators, defaults and
// base classes are evaluated in the current scope; the body gets a fresh
// frame so its locals never leak into the sequence.
func (v *visitor) definition(n pysyntax.Node) error {
	if n.Kind() == pysyntax.KindDecorated {
		for _, dec := range n.NamedChildren() {
			if dec.Type() != "decorator" {
				continue
			}
			if err := v.children(dec); err != nil {
				return err
			}
		}
		return v.definition(n.Field("definition"))
	}

	var params []pysyntax.Param
	if n.Kind() == pysyntax.KindFunctionDef {
		params = pysyntax.Parameters(n.Field("parameters"))
		for _, p := range params {
			if err := v.expr(p.Default); err != nil {
				return err
			}
		}
	} else if err := v.expr(n.Field("superclasses")); err != nil {
		return err
	}

	name := n.Field("name")
	v.write(names.Path{name.Text()}, name)

	v.scopes.push(false)
	defer v.scopes.pop()
	for _, p := range params {
		v.scopes.bind(p.Name)
	}
	if n.Kind() == pysyntax.KindFunctionDef {
		// A name assigned anywhere in a function body is local to the
		// whole body, including reads that come before the assignment.
		// Class bodies resolve names as they run and are not scanned.
		bound, declared := functionLocals(n.Field("body"))
		for name := range declared {
			v.scopes.declare(name)
		}
		for name := range bound {
			v.scopes.bind(name)
		}
	}
	return v.block(n.Field("body"))
}

func (v *visitor) lambda(n pysyntax.Node) error {
	params := pysyntax.Parameters(n.Field("parameters"))
	for _, p := range params {
		if err := v.expr(p.Default); err != nil {
			return err
		}
	}

	v.scopes.push(false)
	defer v.scopes.pop()
	for _, p := range params {
		v.scopes.bind(p.Name)
	}
	return v.expr(n.Field("body"))
}

// comprehension evaluates the first iterable in the enclosing scope, then
// binds every iteration target in a comprehension-only frame before the
// filters and the element expression are read.
func (v *visitor) comprehension(n pysyntax.Node) error {
	var clauses []pysyntax.Node
	for _, child := range n.NamedChildren() {
		if child.Type() == "for_in_clause" || child.Type() == "if_clause" {
			clauses = append(clauses, child)
		}
	}

	first := true
	for _, clause := range clauses {
		if clause.Type() != "for_in_clause" {
			continue
		}
		for _, it := range clause.FieldChildren("right") {
			if err := v.expr(it); err != nil {
				return err
			}
		}
		break
	}

	v.scopes.push(true)
	defer v.scopes.pop()

	for _, clause := range clauses {
		if clause.Type() == "if_clause" {
			if err := v.children(clause); err != nil {
				return err
			}
			continue
		}
		if !first {
			for _, it := range clause.FieldChildren("right") {
				if err := v.expr(it); err != nil {
					return err
				}
			}
		}
		first = false
		if err := v.iterationTarget(clause.Field("left")); err != nil {
			return err
		}
	}

	return v.expr(n.Field("body"))
}

func (v *visitor) read(p names.Path, n pysyntax.Node) {
	if v.scopes.shadows(p.Root()) {
		return
	}
	key := p.Key(v.receiver)
	for _, c := range v.captures {
		c.reads = append(c.reads, key)
	}
	v.res.Read.Add(key)
	if !v.res.Written.Has(key) {
		v.res.ReadBeforeWrite.Add(key)
	}
	v.res.Refs = append(v.res.Refs, ref(p, key, names.ModeRead, n))
}

func (v *visitor) write(p names.Path, n pysyntax.Node) {
	if v.scopes.nested() {
		// Attribute writes inside a nested body mutate outer objects when
		// that body runs, not now; only plain names bind locally.
		if len(p) == 1 {
			v.scopes.bind(p.Root())
		}
		return
	}
	v.writeSequence(p, n)
}

// bindEnclosing binds an assignment-expression target, which skips
// comprehension frames.
func (v *visitor) bindEnclosing(n pysyntax.Node) {
	p := names.Classify(n)
	idx := v.scopes.enclosingFunction()
	if idx < 0 {
		// Assignment expressions may sit behind a short-circuit.
		v.conditional++
		v.writeSequence(p, n)
		v.conditional--
		return
	}
	v.scopes.bindAt(idx, p.Root())
}

func (v *visitor) writeSequence(p names.Path, n pysyntax.Node) {
	key := p.Key(v.receiver)
	for _, c := range v.captures {
		c.writes = append(c.writes, key)
	}
	v.res.Written.Add(key)
	if v.conditional > 0 {
		if !v.definite.Has(key) {
			v.res.MaybeWritten.Add(key)
		}
	} else {
		v.definite.Add(key)
		delete(v.res.MaybeWritten, key)
	}
	v.res.Refs = append(v.res.Refs, ref(p, key, names.ModeWrite, n))
}

func ref(p names.Path, key string, mode names.Mode, n pysyntax.Node) names.Ref {
	return names.Ref{
		Path:   p.String(),
		Key:    key,
		Mode:   mode,
		Line:   n.Line(),
		Column: n.Column(),
	}
}

func (v *visitor) capturing(fn func() error) (*capture, error) {
	c := &capture{}
	v.captures = append(v.captures, c)
	err := fn()
	v.captures = v.captures[:len(v.captures)-1]
	return c, err
}

func (v *visitor) recordBinding(c *capture, n pysyntax.Node) {
	if v.scopes.nested() || len(c.writes) == 0 {
		return
	}
	v.res.Bindings = append(v.res.Bindings, Binding{
		Targets: dedupe(c.writes),
		Deps:    dedupe(c.reads),
		Line:    n.Line(),
	})
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
