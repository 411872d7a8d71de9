// Package split cuts a function body at the requested statement indices and
// produces one synthesized function per segment.
package split

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l3aro/go-forward-split/internal/log"
	"github.com/l3aro/go-forward-split/pkg/contract"
	"github.com/l3aro/go-forward-split/pkg/depgraph"
	"github.com/l3aro/go-forward-split/pkg/envfilter"
	"github.com/l3aro/go-forward-split/pkg/flow"
	"github.com/l3aro/go-forward-split/pkg/names"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
	"github.com/l3aro/go-forward-split/pkg/source"
)

var (
	// ErrInvalidBoundary is returned for cut points that are out of range
	// or not strictly increasing.
	ErrInvalidBoundary = errors.New("invalid boundary")
	// ErrNoLoop is returned when a loop-based split finds no top-level loop.
	ErrNoLoop = errors.New("no top-level loop")
	// ErrUnresolved is returned in strict mode when a segment needs a local
	// nothing before it provides.
	ErrUnresolved = errors.New("unresolved local")
)

// DefaultNameFormat names segment i of function f as f_part<i>.
const DefaultNameFormat = "%s_part%d"

// Target is a statement sequence to analyze or split.
type Target struct {
	Name     string
	Receiver string
	// Params are the declared parameters, receiver excluded.
	Params []string
	Body   []pysyntax.Node
}

// FromFunction builds a target from a loaded function.
func FromFunction(fn *source.Function) Target {
	return Target{Name: fn.Name, Receiver: fn.Receiver, Params: fn.Params, Body: fn.Body}
}

// Splitter holds the settings shared by every analysis.
type Splitter struct {
	receiver   string
	nameFormat string
	indent     int
	globals    []string
	builtins   []string
	strict     bool
	logger     log.Logger
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithReceiver sets the receiver used for snippets, which carry no
// signature of their own.
func WithReceiver(receiver string) Option {
	return func(s *Splitter) { s.receiver = receiver }
}

// WithNameFormat sets the fmt pattern for segment names. It receives the
// function name and the 1-based segment number.
func WithNameFormat(format string) Option {
	return func(s *Splitter) { s.nameFormat = format }
}

// WithIndent sets the indentation width of rendered bodies.
func WithIndent(width int) Option {
	return func(s *Splitter) { s.indent = width }
}

// WithExtraGlobals treats the given names as bound at module level.
func WithExtraGlobals(names ...string) Option {
	return func(s *Splitter) { s.globals = append(s.globals, names...) }
}

// WithExtraBuiltins treats the given names as built-ins.
func WithExtraBuiltins(names ...string) Option {
	return func(s *Splitter) { s.builtins = append(s.builtins, names...) }
}

// WithStrict turns cycle and unresolved-local warnings into errors.
func WithStrict(strict bool) Option {
	return func(s *Splitter) { s.strict = strict }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Splitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Splitter.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		receiver:   flow.DefaultReceiver,
		nameFormat: DefaultNameFormat,
		indent:     4,
		logger:     log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snippet wraps a bare statement sequence as a target using the
// configured receiver.
func (s *Splitter) Snippet(name string, stmts []pysyntax.Node) Target {
	return Target{Name: name, Receiver: s.receiver, Body: stmts}
}

func (s *Splitter) pipeline(receiver string, resolver envfilter.Resolver, declared names.NameSet) *envfilter.Pipeline {
	opts := []envfilter.Option{
		envfilter.WithReceiver(receiver),
		envfilter.WithResolver(resolver),
		envfilter.WithDeclared(declared),
		envfilter.WithBuiltins(s.builtins...),
	}
	if len(s.globals) > 0 {
		opts = append(opts, envfilter.WithResolver(envfilter.NewStaticResolver(s.globals...)))
	}
	return envfilter.New(opts...)
}

// Arguments compares the inputs a body needs with what it declares.
type Arguments struct {
	// Inferred is the receiver followed by the sorted locals the body
	// reads before writing.
	Inferred []string `json:"inferred" yaml:"inferred" msgpack:"inferred"`
	Declared []string `json:"declared" yaml:"declared" msgpack:"declared"`
	// Missing are inferred inputs that are not declared.
	Missing []string `json:"missing" yaml:"missing" msgpack:"missing"`
	// Unused are declared parameters the body never reads before writing.
	Unused []string `json:"unused" yaml:"unused" msgpack:"unused"`
}

// Analysis is the whole-body view used by the inspection commands.
type Analysis struct {
	Function       string                   `json:"function" yaml:"function" msgpack:"function"`
	Receiver       string                   `json:"receiver,omitempty" yaml:"receiver,omitempty" msgpack:"receiver,omitempty"`
	Flow           *flow.Result             `json:"flow" yaml:"flow" msgpack:"-"`
	Classification envfilter.Classification `json:"classification" yaml:"classification" msgpack:"-"`
	Graph          depgraph.Snapshot        `json:"graph" yaml:"graph" msgpack:"graph"`
	Arguments      Arguments                `json:"arguments" yaml:"arguments" msgpack:"arguments"`
}

// Analyze runs flow analysis, classification and dependency ordering over
// the whole body.
func (s *Splitter) Analyze(t Target, resolver envfilter.Resolver) (*Analysis, error) {
	res, err := flow.Analyze(t.Body, flow.WithReceiver(t.Receiver))
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", t.Name, err)
	}

	env := s.pipeline(t.Receiver, resolver, res.Declared)
	locals := env.Locals(res.Produced())
	graph := depgraph.FromBindings(res.Bindings, locals.Has)

	rbw := env.Locals(res.ReadBeforeWrite)
	declared := names.NewSet(t.Params...)
	inferred := rbw.Sorted()
	if t.Receiver != "" {
		inferred = append([]string{t.Receiver}, inferred...)
	}

	a := &Analysis{
		Function:       t.Name,
		Receiver:       t.Receiver,
		Flow:           res,
		Classification: env.Classify(res.Produced()),
		Graph:          graph.Snapshot(),
		Arguments: Arguments{
			Inferred: inferred,
			Declared: append([]string{}, t.Params...),
			Missing:  rbw.Minus(declared).Sorted(),
			Unused:   declared.Minus(res.ReadBeforeWrite).Sorted(),
		},
	}

	s.logger.Debug("analyzed function",
		"function", t.Name,
		"statements", res.Statements,
		"locals", locals.Len(),
		"bindings", len(res.Bindings),
	)
	return a, nil
}

// WarningKind identifies a degraded-result condition.
type WarningKind string

const (
	WarnCycle       WarningKind = "cycle"
	WarnSplitCycle  WarningKind = "split_cycle"
	WarnUnresolved  WarningKind = "unresolved"
	WarnEarlyReturn WarningKind = "early_return"
)

// Warning is a condition that does not stop a split but makes its result
// questionable.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind" msgpack:"kind"`
	Segment int         `json:"segment" yaml:"segment" msgpack:"segment"`
	Names   []string    `json:"names,omitempty" yaml:"names,omitempty" msgpack:"names,omitempty"`
	Lines   []int       `json:"lines,omitempty" yaml:"lines,omitempty" msgpack:"lines,omitempty"`
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnCycle:
		return fmt.Sprintf("cyclic local dependency between %s", strings.Join(w.Names, ", "))
	case WarnSplitCycle:
		return fmt.Sprintf("segment %d: cut separates the cycle %s", w.Segment, strings.Join(w.Names, ", "))
	case WarnUnresolved:
		return fmt.Sprintf("segment %d: no earlier segment provides %s", w.Segment, strings.Join(w.Names, ", "))
	case WarnEarlyReturn:
		return fmt.Sprintf("segment %d: return before the last segment at line %s", w.Segment, joinInts(w.Lines))
	}
	return string(w.Kind)
}

func joinInts(items []int) string {
	parts := make([]string, len(items))
	for i, n := range items {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

// Result is the outcome of one split.
type Result struct {
	Function   string              `json:"function" yaml:"function" msgpack:"function"`
	Receiver   string              `json:"receiver,omitempty" yaml:"receiver,omitempty" msgpack:"receiver,omitempty"`
	Params     []string            `json:"params" yaml:"params" msgpack:"params"`
	Boundaries []int               `json:"boundaries" yaml:"boundaries" msgpack:"boundaries"`
	Segments   []contract.Contract `json:"segments" yaml:"segments" msgpack:"segments"`
	Warnings   []Warning           `json:"warnings,omitempty" yaml:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// ValidateBoundaries checks that every cut point lies strictly inside the
// body and that cut points strictly increase.
func ValidateBoundaries(boundaries []int, statements int) error {
	prev := 0
	for _, b := range boundaries {
		if b <= prev || b >= statements {
			return fmt.Errorf("%w: %d (body has %d statements, cut points must increase)", ErrInvalidBoundary, b, statements)
		}
		prev = b
	}
	return nil
}

// AroundLoop proposes cut points isolating the first top-level loop of fn
// from the statements before and after it.
func AroundLoop(fn *source.Function) ([]int, error) {
	i := fn.FindLoop()
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", fn.Name, ErrNoLoop)
	}

	var out []int
	if i > 0 {
		out = append(out, i)
	}
	if i+1 < len(fn.Body) {
		out = append(out, i+1)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: loop is the whole body: %w", fn.Name, ErrInvalidBoundary)
	}
	return out, nil
}

// Split cuts t before each boundary index and synthesizes the segments.
func (s *Splitter) Split(t Target, resolver envfilter.Resolver, boundaries []int) (*Result, error) {
	if err := ValidateBoundaries(boundaries, len(t.Body)); err != nil {
		return nil, err
	}

	cuts := append(append([]int{0}, boundaries...), len(t.Body))
	segments := make([]contract.Segment, 0, len(cuts)-1)
	declared := names.NewSet()
	for i := 0; i+1 < len(cuts); i++ {
		seg, err := contract.NewSegment(t.Body[cuts[i]:cuts[i+1]], t.Receiver)
		if err != nil {
			return nil, fmt.Errorf("analyzing segment %d of %s: %w", i+1, t.Name, err)
		}
		declared = declared.Union(seg.Flow.Declared)
		segments = append(segments, seg)
		s.logger.Debug("segment analyzed",
			"segment", i+1,
			"statements", len(seg.Statements),
			"read_before_write", seg.Flow.ReadBeforeWrite.Len(),
		)
	}

	env := s.pipeline(t.Receiver, resolver, declared)
	plan := contract.BuildPlan(segments, env, contract.PlanConfig{
		Receiver: t.Receiver,
		Params:   t.Params,
		Name: func(i int) string {
			return fmt.Sprintf(s.nameFormat, t.Name, i+1)
		},
	})

	r := &Result{
		Function:   t.Name,
		Receiver:   t.Receiver,
		Params:     append([]string{}, t.Params...),
		Boundaries: append([]int{}, boundaries...),
		Segments:   plan.Contracts,
	}

	for i := range r.Segments {
		def := r.Segments[i].FunctionDef()
		if err := def.Verify(s.indent); err != nil {
			return nil, fmt.Errorf("rendering segment %d of %s: %w", i+1, t.Name, err)
		}
		r.Segments[i].Source = def.Render(s.indent)
	}

	cycleErr := s.collectWarnings(r, segments, plan, env)
	for _, w := range r.Warnings {
		s.logger.Warn(w.String(), "function", t.Name, "kind", string(w.Kind))
	}

	if s.strict {
		if cycleErr != nil {
			return nil, fmt.Errorf("splitting %s: %w", t.Name, cycleErr)
		}
		for _, w := range r.Warnings {
			switch w.Kind {
			case WarnUnresolved:
				return nil, fmt.Errorf("splitting %s: %w: %s", t.Name, ErrUnresolved, w)
			case WarnSplitCycle:
				return nil, fmt.Errorf("splitting %s: %w: %s", t.Name, depgraph.ErrCyclicLocalDependency, w)
			}
		}
	}

	s.logger.Info("split planned", "function", t.Name, "segments", len(r.Segments), "warnings", len(r.Warnings))
	return r, nil
}

func (s *Splitter) collectWarnings(r *Result, segments []contract.Segment, plan contract.Plan, env *envfilter.Pipeline) error {
	var bindings []flow.Binding
	written := make([]names.NameSet, len(segments))
	for i, seg := range segments {
		bindings = append(bindings, seg.Flow.Bindings...)
		written[i] = env.Locals(seg.Flow.Written)

		if i < len(segments)-1 && len(seg.Flow.ReturnLines) > 0 {
			r.Warnings = append(r.Warnings, Warning{Kind: WarnEarlyReturn, Segment: i + 1, Lines: seg.Flow.ReturnLines})
		}
	}

	for _, u := range plan.Unresolved {
		r.Warnings = append(r.Warnings, Warning{Kind: WarnUnresolved, Segment: u.Segment + 1, Names: u.Names})
	}

	graph := depgraph.FromBindings(bindings, func(key string) bool {
		return env.Category(key) == envfilter.Local
	})
	_, err := graph.TopoSort()
	var cerr *depgraph.CycleError
	if errors.As(err, &cerr) {
		r.Warnings = append(r.Warnings, Warning{Kind: WarnCycle, Names: cerr.Unresolved})
	}
	for _, v := range graph.ValidateCut(written) {
		r.Warnings = append(r.Warnings, Warning{Kind: WarnSplitCycle, Segment: v.Segments[1] + 1, Names: v.Members})
	}
	return err
}
