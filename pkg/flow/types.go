// Package flow computes, for an ordered statement sequence, which names it
// writes, which it reads, and which it reads before writing them.
package flow

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-forward-split/pkg/names"
)

// ErrUnsupportedConstruct is returned for statements the visitor has no rule for.
var ErrUnsupportedConstruct = errors.New("unsupported construct")

// ErrAmbiguousIterationTarget is returned for loop or comprehension targets
// that are neither a name nor a flat tuple of names.
var ErrAmbiguousIterationTarget = errors.New("ambiguous iteration target")

// ConstructError locates an analysis failure in the source.
type ConstructError struct {
	Kind     error
	NodeType string
	Line     int
	Column   int
	Snippet  string
}

func (e *ConstructError) Error() string {
	return fmt.Sprintf("%v: %s at line %d, column %d: %q", e.Kind, e.NodeType, e.Line, e.Column, e.Snippet)
}

func (e *ConstructError) Unwrap() error {
	return e.Kind
}

// Binding records one assignment-like statement at function level: every
// target key it writes and every key read while computing the value.
type Binding struct {
	Targets []string `json:"targets" yaml:"targets" msgpack:"targets"`
	Deps    []string `json:"deps" yaml:"deps" msgpack:"deps"`
	Line    int      `json:"line" yaml:"line" msgpack:"line"`
}

// Result is the flow summary of one statement sequence.
type Result struct {
	Written names.NameSet `json:"written" yaml:"written"`
	// MaybeWritten holds the written names that are bound only on some
	// paths: inside a branch or loop body, or by an assignment expression.
	MaybeWritten    names.NameSet `json:"maybe_written" yaml:"maybe_written"`
	Read            names.NameSet `json:"read" yaml:"read"`
	ReadBeforeWrite names.NameSet `json:"read_before_write" yaml:"read_before_write"`
	// Declared holds names named by global or nonlocal statements.
	Declared names.NameSet `json:"declared" yaml:"declared"`
	Refs     []names.Ref   `json:"refs" yaml:"refs"`
	Bindings []Binding     `json:"bindings" yaml:"bindings"`
	// ReturnLines lists function-level return statements anywhere in the sequence.
	ReturnLines []int `json:"return_lines,omitempty" yaml:"return_lines,omitempty"`
	// TailReturn is set when the last statement is a return; it holds the
	// keys that return statement reads.
	TailReturn names.NameSet `json:"tail_return,omitempty" yaml:"tail_return,omitempty"`
	Statements int           `json:"statements" yaml:"statements"`
}

func newResult() *Result {
	return &Result{
		Written:         make(names.NameSet),
		MaybeWritten:    make(names.NameSet),
		Read:            make(names.NameSet),
		ReadBeforeWrite: make(names.NameSet),
		Declared:        make(names.NameSet),
		Refs:            make([]names.Ref, 0),
		Bindings:        make([]Binding, 0),
	}
}

// Produced is everything this sequence makes available to a later one:
// the names it writes plus the names it reads.
func (r *Result) Produced() names.NameSet {
	return r.Written.Union(r.Read)
}

// DefinitelyWritten is the set of names bound on every path through the
// sequence.
func (r *Result) DefinitelyWritten() names.NameSet {
	return r.Written.Minus(r.MaybeWritten)
}

// HasTailReturn reports whether the sequence ends in a return statement.
func (r *Result) HasTailReturn() bool {
	return r.TailReturn != nil
}
