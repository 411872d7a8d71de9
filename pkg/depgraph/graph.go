// Package depgraph builds the dependency graph between local bindings of a
// function body and orders it topologically.
package depgraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/l3aro/go-forward-split/pkg/flow"
	"github.com/l3aro/go-forward-split/pkg/names"
)

// ErrCyclicLocalDependency is reported when the order is incomplete.
var ErrCyclicLocalDependency = errors.New("cyclic local dependency")

// CycleError names the nodes left unordered by a topological sort.
type CycleError struct {
	Unresolved []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCyclicLocalDependency, strings.Join(e.Unresolved, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicLocalDependency
}

// Edge says To is computed from From.
type Edge struct {
	From string `json:"from" yaml:"from" msgpack:"from"`
	To   string `json:"to" yaml:"to" msgpack:"to"`
	Line int    `json:"line" yaml:"line" msgpack:"line"`
}

// Graph is a directed graph over flow keys. Nodes keep first-seen order,
// which makes every traversal deterministic.
type Graph struct {
	nodes []string
	index map[string]int
	out   map[string][]string
	seen  map[[2]string]bool
	edges []Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		out:   make(map[string][]string),
		seen:  make(map[[2]string]bool),
	}
}

// AddNode registers name if it is new.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge records that to depends on from. Self edges are dropped:
// `x = f(x)` rebinds x, it does not make x depend on itself.
func (g *Graph) AddEdge(from, to string, line int) {
	g.AddNode(from)
	g.AddNode(to)
	if from == to {
		return
	}
	key := [2]string{from, to}
	if g.seen[key] {
		return
	}
	g.seen[key] = true
	g.out[from] = append(g.out[from], to)
	g.edges = append(g.edges, Edge{From: from, To: to, Line: line})
}

// Nodes returns the nodes in first-seen order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Successors returns the nodes that depend directly on name.
func (g *Graph) Successors(name string) []string {
	return g.out[name]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// FromBindings builds the graph of function-level bindings. Only keys
// accepted by keep take part; a nil keep accepts every key.
func FromBindings(bindings []flow.Binding, keep func(string) bool) *Graph {
	if keep == nil {
		keep = func(string) bool { return true }
	}

	g := New()
	for _, b := range bindings {
		for _, target := range b.Targets {
			if !keep(target) {
				continue
			}
			g.AddNode(target)
			for _, dep := range b.Deps {
				if keep(dep) {
					g.AddEdge(dep, target, b.Line)
				}
			}
		}
	}
	return g
}

// TopoSort orders nodes so every dependency precedes its dependents, using
// Kahn's algorithm with ties broken by first-seen order. When the graph
// has a cycle the partial order is returned together with a *CycleError
// naming the nodes that could not be placed.
func (g *Graph) TopoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, from := range g.nodes {
		for _, to := range g.out[from] {
			indegree[to]++
		}
	}

	var ready []int
	for i, name := range g.nodes {
		if indegree[name] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		name := g.nodes[ready[0]]
		ready = ready[1:]
		order = append(order, name)

		for _, to := range g.out[name] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = insertSorted(ready, g.index[to])
			}
		}
	}

	if len(order) == len(g.nodes) {
		return order, nil
	}

	placed := names.NewSet(order...)
	var unresolved []string
	for _, name := range g.nodes {
		if !placed.Has(name) {
			unresolved = append(unresolved, name)
		}
	}
	return order, &CycleError{Unresolved: unresolved}
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// Snapshot is the serializable form of a graph.
type Snapshot struct {
	Nodes []string `json:"nodes" yaml:"nodes" msgpack:"nodes"`
	Edges []Edge   `json:"edges" yaml:"edges" msgpack:"edges"`
	Order []string `json:"order" yaml:"order" msgpack:"order"`
	// Unresolved lists nodes on a cycle; empty for acyclic graphs.
	Unresolved []string `json:"unresolved,omitempty" yaml:"unresolved,omitempty" msgpack:"unresolved,omitempty"`
}

// Snapshot captures the graph together with its topological order.
func (g *Graph) Snapshot() Snapshot {
	order, err := g.TopoSort()
	s := Snapshot{Nodes: g.Nodes(), Edges: g.Edges(), Order: order}
	var cerr *CycleError
	if errors.As(err, &cerr) {
		s.Unresolved = cerr.Unresolved
	}
	return s
}
