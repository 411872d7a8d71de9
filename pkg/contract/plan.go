package contract

import (
	"fmt"

	"github.com/l3aro/go-forward-split/pkg/envfilter"
	"github.com/l3aro/go-forward-split/pkg/flow"
	"github.com/l3aro/go-forward-split/pkg/names"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

// Segment is a contiguous run of statements and its flow summary.
type Segment struct {
	Statements []pysyntax.Node
	Flow       *flow.Result
}

// NewSegment analyzes stmts.
func NewSegment(stmts []pysyntax.Node, receiver string) (Segment, error) {
	res, err := flow.Analyze(stmts, flow.WithReceiver(receiver))
	if err != nil {
		return Segment{}, err
	}
	return Segment{Statements: stmts, Flow: res}, nil
}

// Unresolved lists locals a segment reads that no earlier segment and no
// declared parameter can provide.
type Unresolved struct {
	Segment int      `json:"segment" yaml:"segment" msgpack:"segment"`
	Names   []string `json:"names" yaml:"names" msgpack:"names"`
}

// Plan is the set of contracts for one segmentation.
type Plan struct {
	Contracts  []Contract   `json:"contracts" yaml:"contracts" msgpack:"contracts"`
	Unresolved []Unresolved `json:"unresolved,omitempty" yaml:"unresolved,omitempty" msgpack:"unresolved,omitempty"`
}

// PlanConfig carries what the planner needs to know about the original function.
type PlanConfig struct {
	Receiver string
	// Params are the declared parameters of the original function,
	// receiver excluded.
	Params []string
	// Name returns the name of segment i. Defaults to part<i>.
	Name func(i int) string
}

// BuildPlan derives the contracts for consecutive segments. Values are
// threaded backwards: a local produced in segment i and consumed in
// segment k > i+1 is returned and received by every segment in between.
func BuildPlan(segments []Segment, env *envfilter.Pipeline, cfg PlanConfig) Plan {
	n := len(segments)
	if cfg.Name == nil {
		cfg.Name = func(i int) string { return fmt.Sprintf("part%d", i) }
	}

	// before[j]: locals known before segment j starts, the declared
	// parameters for the first. avail[j] is the same but nil for the
	// first segment, whose inputs are all external.
	before := make([]names.NameSet, n)
	avail := make([]names.NameSet, n)
	known := names.NewSet(cfg.Params...)
	for j := 0; j < n; j++ {
		before[j] = known.Clone()
		if j > 0 {
			avail[j] = before[j]
		}
		known = known.Union(segments[j].Flow.Produced())
	}

	rbw := make([]names.NameSet, n)
	for j, seg := range segments {
		rbw[j] = env.Locals(seg.Flow.ReadBeforeWrite)
	}

	plan := Plan{Contracts: make([]Contract, n)}
	needIn := make([]names.NameSet, n+1)
	needIn[n] = names.NewSet()

	for j := n - 1; j >= 0; j-- {
		own := rbw[j]
		if avail[j] != nil {
			own = rbw[j].Intersect(avail[j])
			if missing := rbw[j].Minus(avail[j]); missing.Len() > 0 {
				plan.Unresolved = append(plan.Unresolved, Unresolved{Segment: j, Names: missing.Sorted()})
			}
		}
		// A name the segment binds only on some paths keeps its incoming
		// value on the others, so it is received too whenever it exists.
		f := segments[j].Flow
		passThrough := needIn[j+1].Minus(f.Written)
		kept := needIn[j+1].Intersect(f.MaybeWritten).Intersect(before[j])
		needIn[j] = own.Union(passThrough).Union(kept)
	}

	for j, seg := range segments {
		c := Contract{
			Name:       cfg.Name(j),
			Index:      j,
			Receiver:   cfg.Receiver,
			Parameters: withReceiver(cfg.Receiver, needIn[j].Sorted()),
			Returns:    needIn[j+1].Sorted(),
			TailReturn: seg.Flow.HasTailReturn(),
			Body:       seg.Statements,
		}
		if j == n-1 {
			c.Returns = []string{}
			if c.TailReturn {
				c.Returns = env.Locals(seg.Flow.TailReturn).Sorted()
			}
		}
		if len(seg.Statements) > 0 {
			c.StartLine = seg.Statements[0].Line()
			c.EndLine = seg.Statements[len(seg.Statements)-1].EndLine()
		}
		plan.Contracts[j] = c
	}

	// Reported back to front above; present them in segment order.
	for i, k := 0, len(plan.Unresolved)-1; i < k; i, k = i+1, k-1 {
		plan.Unresolved[i], plan.Unresolved[k] = plan.Unresolved[k], plan.Unresolved[i]
	}
	return plan
}
