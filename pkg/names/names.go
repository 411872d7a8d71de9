// Package names resolves identifier and attribute-chain references to
// dotted paths and tracks the access mode fixed by their syntactic position.
package names

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

// Mode is the access mode of a reference.
type Mode string

const (
	ModeRead  Mode = "read"  // any appearance outside an assignment target
	ModeWrite Mode = "write" // assignment, loop or binding target
)

// Path is a reference split into its dotted segments, e.g. self.config.use_cache.
type Path []string

// ParsePath splits a dotted name.
func ParsePath(dotted string) Path {
	if dotted == "" {
		return nil
	}
	return Path(strings.Split(dotted, "."))
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Root returns the first segment.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Key folds the path to the granularity flow analysis tracks. Paths rooted
// at the receiver keep two segments (self.layers); every other path folds to
// its root name, since attribute provenance below a variable is not tracked.
func (p Path) Key(receiver string) string {
	if len(p) == 0 {
		return ""
	}
	if receiver != "" && p[0] == receiver && len(p) > 1 {
		return p[0] + "." + p[1]
	}
	return p[0]
}

// Ref is a single classified reference.
type Ref struct {
	Path   string `json:"path" yaml:"path" msgpack:"path"`
	Key    string `json:"key" yaml:"key" msgpack:"key"`
	Mode   Mode   `json:"mode" yaml:"mode" msgpack:"mode"`
	Line   int    `json:"line" yaml:"line" msgpack:"line"`
	Column int    `json:"column" yaml:"column" msgpack:"column"`
}

// IsReference reports whether n is a Name, or an Attribute chain that
// bottoms out at a Name. Only such nodes may be passed to Classify.
func IsReference(n pysyntax.Node) bool {
	switch n.Kind() {
	case pysyntax.KindName:
		return true
	case pysyntax.KindAttribute:
		return IsReference(n.Field("object"))
	}
	return false
}

// Classify resolves a Name or Attribute reference to its dotted path,
// left to right. Passing any other node kind is a caller bug and panics.
func Classify(n pysyntax.Node) Path {
	switch n.Kind() {
	case pysyntax.KindName:
		return Path{n.Text()}
	case pysyntax.KindAttribute:
		base := Classify(n.Field("object"))
		attr := n.Field("attribute")
		out := make(Path, len(base), len(base)+1)
		copy(out, base)
		return append(out, attr.Text())
	}
	panic(fmt.Sprintf("names.Classify: unsupported node %s at line %d", n.Type(), n.Line()))
}
