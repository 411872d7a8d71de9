// Package contract derives the calling contract of each segment of a split
// function: which locals it takes, which it hands to the next segment, and
// the Python definition that realizes it.
package contract

import (
	"github.com/l3aro/go-forward-split/pkg/envfilter"
	"github.com/l3aro/go-forward-split/pkg/flow"
	"github.com/l3aro/go-forward-split/pkg/names"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

// Contract is the signature of one synthesized segment.
type Contract struct {
	Name     string `json:"name" yaml:"name" msgpack:"name"`
	Index    int    `json:"index" yaml:"index" msgpack:"index"`
	Receiver string `json:"receiver,omitempty" yaml:"receiver,omitempty" msgpack:"receiver,omitempty"`
	// Parameters starts with the receiver when there is one; the remaining
	// names are sorted.
	Parameters []string `json:"parameters" yaml:"parameters" msgpack:"parameters"`
	// Returns lists, sorted, the locals the segment yields.
	Returns []string `json:"returns" yaml:"returns" msgpack:"returns"`
	// TailReturn is set when the segment ends in its own return statement,
	// which is kept instead of appending a return tuple.
	TailReturn bool   `json:"tail_return" yaml:"tail_return" msgpack:"tail_return"`
	StartLine  int    `json:"start_line" yaml:"start_line" msgpack:"start_line"`
	EndLine    int    `json:"end_line" yaml:"end_line" msgpack:"end_line"`
	Source     string `json:"source,omitempty" yaml:"source,omitempty" msgpack:"source,omitempty"`

	Body []pysyntax.Node `json:"-" yaml:"-" msgpack:"-"`
}

// Interface returns the locals next must receive from prev: the names next
// reads before writing that prev either wrote or itself received.
func Interface(prev, next *flow.Result, env *envfilter.Pipeline) names.NameSet {
	return env.Locals(next.ReadBeforeWrite).Intersect(prev.Produced())
}

// Handoff is the sorted return list prev needs so that next can run.
func Handoff(prev, next *flow.Result, env *envfilter.Pipeline) []string {
	return Interface(prev, next, env).Sorted()
}

// Synthesize builds the contract of the second half of a two-way split,
// named name. It is the two-segment case of BuildPlan.
func Synthesize(prev, next Segment, env *envfilter.Pipeline, receiver, name string) Contract {
	plan := BuildPlan([]Segment{prev, next}, env, PlanConfig{
		Receiver: receiver,
		Name:     func(int) string { return name },
	})
	return plan.Contracts[1]
}

func withReceiver(receiver string, params []string) []string {
	if receiver == "" {
		return params
	}
	return append([]string{receiver}, params...)
}
