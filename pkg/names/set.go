package names

import (
	"encoding/json"
	"sort"
)

// NameSet is an unordered set of flow keys. Every exported listing of a set
// is sorted, so output never depends on map iteration order.
type NameSet map[string]struct{}

// NewSet builds a set from the given names.
func NewSet(items ...string) NameSet {
	s := make(NameSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s NameSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexicographic order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s NameSet) Clone() NameSet {
	out := make(NameSet, len(s))
	for name := range s {
		out[name] = struct{}{}
	}
	return out
}

// Union returns s ∪ other as a new set.
func (s NameSet) Union(other NameSet) NameSet {
	out := s.Clone()
	for name := range other {
		out[name] = struct{}{}
	}
	return out
}

// Intersect returns s ∩ other as a new set.
func (s NameSet) Intersect(other NameSet) NameSet {
	out := make(NameSet)
	for name := range s {
		if other.Has(name) {
			out[name] = struct{}{}
		}
	}
	return out
}

// Minus returns s − other as a new set.
func (s NameSet) Minus(other NameSet) NameSet {
	out := make(NameSet)
	for name := range s {
		if !other.Has(name) {
			out[name] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same members.
func (s NameSet) Equal(other NameSet) bool {
	if len(s) != len(other) {
		return false
	}
	for name := range s {
		if !other.Has(name) {
			return false
		}
	}
	return true
}

func (s NameSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *NameSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewSet(items...)
	return nil
}

// MarshalYAML encodes the set as a sorted sequence.
func (s NameSet) MarshalYAML() (interface{}, error) {
	return s.Sorted(), nil
}
