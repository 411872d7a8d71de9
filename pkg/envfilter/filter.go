// Package envfilter partitions flow keys by where their value comes from:
// object state, the module namespace, the built-ins, or the function itself.
package envfilter

import (
	"strings"

	"github.com/l3aro/go-forward-split/pkg/names"
)

// Category is the environment a name resolves in.
type Category int

const (
	Local Category = iota
	SelfAttribute
	GlobalBinding
	BuiltinName
)

var categoryNames = map[Category]string{
	Local:         "local",
	SelfAttribute: "self_attribute",
	GlobalBinding: "global",
	BuiltinName:   "builtin",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Categories lists every category in filter order, Local last.
func Categories() []Category {
	return []Category{SelfAttribute, GlobalBinding, BuiltinName, Local}
}

// Resolver answers whether a name is bound in an externally owned
// namespace, typically the module being analyzed.
type Resolver interface {
	Resolves(name string) bool
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) bool

func (f ResolverFunc) Resolves(name string) bool {
	return f(name)
}

// StaticResolver resolves a fixed set of names.
type StaticResolver names.NameSet

// NewStaticResolver builds a resolver over the given names.
func NewStaticResolver(items ...string) StaticResolver {
	return StaticResolver(names.NewSet(items...))
}

func (s StaticResolver) Resolves(name string) bool {
	return names.NameSet(s).Has(name)
}

// Pipeline applies the self, global and builtin filters in that order.
// A name is Local when no filter claims it.
type Pipeline struct {
	receiver string
	globals  []Resolver
	declared names.NameSet
	builtins names.NameSet
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReceiver sets the receiver name. Default "self"; empty disables the
// self filter.
func WithReceiver(receiver string) Option {
	return func(p *Pipeline) {
		p.receiver = receiver
	}
}

// WithResolver adds a module-namespace resolver. Nil resolvers are ignored.
func WithResolver(r Resolver) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.globals = append(p.globals, r)
		}
	}
}

// WithDeclared marks names declared global or nonlocal in the analyzed code.
func WithDeclared(declared names.NameSet) Option {
	return func(p *Pipeline) {
		for name := range declared {
			p.declared.Add(name)
		}
	}
}

// WithBuiltins extends the built-in table, e.g. with framework-injected names.
func WithBuiltins(extra ...string) Option {
	return func(p *Pipeline) {
		for _, name := range extra {
			p.builtins.Add(name)
		}
	}
}

// New builds a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		receiver: "self",
		declared: names.NewSet(),
		builtins: names.NewSet(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Category returns the category of a single flow key.
func (p *Pipeline) Category(key string) Category {
	root := names.ParsePath(key).Root()

	if p.receiver != "" && (key == p.receiver || strings.HasPrefix(key, p.receiver+".")) {
		return SelfAttribute
	}
	if p.declared.Has(root) {
		return GlobalBinding
	}
	for _, r := range p.globals {
		if r.Resolves(key) || r.Resolves(root) {
			return GlobalBinding
		}
	}
	if IsBuiltin(root) || p.builtins.Has(root) {
		return BuiltinName
	}
	return Local
}

// Classification is the partition of one name set.
type Classification struct {
	Categories map[string]Category `json:"categories" yaml:"categories"`
}

// Of returns the members of one category.
func (c Classification) Of(cat Category) names.NameSet {
	out := names.NewSet()
	for name, got := range c.Categories {
		if got == cat {
			out.Add(name)
		}
	}
	return out
}

// Local returns the names no filter claimed.
func (c Classification) Local() names.NameSet {
	return c.Of(Local)
}

// Classify partitions set. Every input name lands in exactly one category.
func (p *Pipeline) Classify(set names.NameSet) Classification {
	c := Classification{Categories: make(map[string]Category, len(set))}
	for name := range set {
		c.Categories[name] = p.Category(name)
	}
	return c
}

// Locals keeps only the Local names of set.
func (p *Pipeline) Locals(set names.NameSet) names.NameSet {
	out := names.NewSet()
	for name := range set {
		if p.Category(name) == Local {
			out.Add(name)
		}
	}
	return out
}
