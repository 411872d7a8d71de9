package depgraph

import (
	"github.com/l3aro/go-forward-split/pkg/names"
)

// SCCs returns the strongly connected components in Tarjan's order
// (dependents before dependencies). Members keep first-seen order.
func (g *Graph) SCCs() [][]string {
	t := tarjan{
		g:     g,
		index: make(map[string]int),
		low:   make(map[string]int),
		on:    make(map[string]bool),
	}
	for _, name := range g.nodes {
		if _, ok := t.index[name]; !ok {
			t.visit(name)
		}
	}
	return t.out
}

type tarjan struct {
	g     *Graph
	next  int
	index map[string]int
	low   map[string]int
	on    map[string]bool
	stack []string
	out   [][]string
}

func (t *tarjan) visit(v string) {
	t.index[v] = t.next
	t.low[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.on[v] = true

	for _, w := range t.g.out[v] {
		if _, ok := t.index[w]; !ok {
			t.visit(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.on[w] {
			t.low[v] = min(t.low[v], t.index[w])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}

	var comp []string
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.on[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	t.out = append(t.out, t.g.inFirstSeenOrder(comp))
}

func (g *Graph) inFirstSeenOrder(members []string) []string {
	set := names.NewSet(members...)
	out := make([]string, 0, len(members))
	for _, name := range g.nodes {
		if set.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Cycles returns only the components that form a real cycle.
func (g *Graph) Cycles() [][]string {
	var out [][]string
	for _, comp := range g.SCCs() {
		if len(comp) > 1 {
			out = append(out, comp)
		}
	}
	return out
}

// CutViolation is a cycle whose members are written in several segments.
type CutViolation struct {
	Members  []string `json:"members" yaml:"members" msgpack:"members"`
	Segments []int    `json:"segments" yaml:"segments" msgpack:"segments"`
}

// ValidateCut checks a segmentation, given the keys written by each
// segment in order, and reports every cycle the cut points split apart.
func (g *Graph) ValidateCut(written []names.NameSet) []CutViolation {
	var out []CutViolation
	for _, comp := range g.Cycles() {
		var segments []int
		for i, w := range written {
			for _, member := range comp {
				if w.Has(member) {
					segments = append(segments, i)
					break
				}
			}
		}
		if len(segments) > 1 {
			out = append(out, CutViolation{Members: comp, Segments: segments})
		}
	}
	return out
}
