package flow

import (
	"github.com/l3aro/go-forward-split/pkg/names"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

// functionLocals scans a function body for the names it binds and the
// names it declares global or nonlocal. Nested definitions contribute
// only their own name.
func functionLocals(body pysyntax.Node) (bound, declared names.NameSet) {
	bound, declared = make(names.NameSet), make(names.NameSet)

	var block func(n pysyntax.Node)
	var statement func(n pysyntax.Node)
	block = func(n pysyntax.Node) {
		for _, stmt := range n.Statements() {
			statement(stmt)
		}
	}
	statement = func(n pysyntax.Node) {
		switch n.Kind() {
		case pysyntax.KindExpression:
			for _, child := range n.NamedChildren() {
				switch child.Kind() {
				case pysyntax.KindAssignment:
					// `x: int` makes x local even without a value.
					for cur := child; cur.Kind() == pysyntax.KindAssignment; cur = cur.Field("right") {
						targetNames(cur.Field("left"), bound)
					}
				case pysyntax.KindAugAssignment:
					targetNames(child.Field("left"), bound)
				}
			}
		case pysyntax.KindIf:
			block(n.Field("consequence"))
			for _, alt := range n.FieldChildren("alternative") {
				if alt.Type() == "elif_clause" {
					block(alt.Field("consequence"))
				} else {
					block(alt.Field("body"))
				}
			}
		case pysyntax.KindFor:
			targetNames(n.Field("left"), bound)
			block(n.Field("body"))
			block(n.Field("alternative").Field("body"))
		case pysyntax.KindWhile:
			block(n.Field("body"))
			block(n.Field("alternative").Field("body"))
		case pysyntax.KindWith:
			for _, item := range n.ChildOfType("with_clause").NamedChildren() {
				value := item.Field("value")
				if value.Type() != "as_pattern" {
					continue
				}
				alias := value.Field("alias")
				if targets := alias.NamedChildren(); len(targets) > 0 {
					for _, t := range targets {
						targetNames(t, bound)
					}
				} else {
					bound.Add(alias.Text())
				}
			}
			block(n.Field("body"))
		case pysyntax.KindFunctionDef, pysyntax.KindClassDef:
			bound.Add(n.Field("name").Text())
		case pysyntax.KindDecorated:
			statement(n.Field("definition"))
		case pysyntax.KindImport:
			for _, name := range n.FieldChildren("name") {
				switch name.Type() {
				case "dotted_name":
					if first := name.ChildOfType("identifier"); !first.IsNil() {
						bound.Add(first.Text())
					}
				case "aliased_import":
					bound.Add(name.Field("alias").Text())
				}
			}
		case pysyntax.KindGlobal, pysyntax.KindNonlocal:
			for _, id := range n.NamedChildren() {
				if id.Kind() == pysyntax.KindName {
					declared.Add(id.Text())
				}
			}
		}
	}

	block(body)
	return bound.Minus(declared), declared
}

func targetNames(t pysyntax.Node, into names.NameSet) {
	switch t.Kind() {
	case pysyntax.KindName:
		into.Add(t.Text())
	case pysyntax.KindTuple, pysyntax.KindParenthesized, pysyntax.KindStarred:
		for _, child := range t.NamedChildren() {
			targetNames(child, into)
		}
	}
}
