package flow

// frame is one nested local scope opened by a def, class, lambda or
// comprehension.
type frame struct {
	names map[string]bool
	// declared holds names a global or nonlocal statement ties to an
	// outer scope; they never bind in this frame.
	declared      map[string]bool
	comprehension bool
}

// scopeStack holds the nested frames active above the analyzed sequence.
// The analyzed sequence itself is not a frame: its names go to the Result.
type scopeStack []frame

// shadows reports whether any active nested frame binds name.
func (s scopeStack) shadows(name string) bool {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].names[name] {
			return true
		}
	}
	return false
}

func (s scopeStack) nested() bool {
	return len(s) > 0
}

// bind adds name to the innermost frame.
func (s scopeStack) bind(name string) {
	if len(s) > 0 {
		s.bindAt(len(s)-1, name)
	}
}

func (s scopeStack) bindAt(i int, name string) {
	if !s[i].declared[name] {
		s[i].names[name] = true
	}
}

// declare marks name as global or nonlocal in the innermost frame.
func (s scopeStack) declare(name string) {
	if len(s) > 0 {
		top := s[len(s)-1]
		top.declared[name] = true
		delete(top.names, name)
	}
}

// enclosingFunction returns the index of the innermost frame that is not a
// comprehension, or -1 when assignment expressions bind at sequence level.
func (s scopeStack) enclosingFunction() int {
	for i := len(s) - 1; i >= 0; i-- {
		if !s[i].comprehension {
			return i
		}
	}
	return -1
}

func (s *scopeStack) push(comprehension bool) {
	*s = append(*s, frame{
		names:         make(map[string]bool),
		declared:      make(map[string]bool),
		comprehension: comprehension,
	})
}

func (s *scopeStack) pop() {
	if len(*s) > 0 {
		*s = (*s)[:len(*s)-1]
	}
}
