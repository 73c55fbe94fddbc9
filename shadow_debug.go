//go:build vtdebug

package vthread

import "strings"

// Debug is a constant which takes the values true or false depending on
// whether the program is built with the "vtdebug" tag.
const Debug = true

// shadowStack mirrors the frame stack with one call site descriptor for each
// frame pushed by a Call. The root frame has no descriptor.
type shadowStack struct {
	frames []string
}

func (s *shadowStack) push(desc string) { s.frames = append(s.frames, desc) }

func (s *shadowStack) pop() { s.frames = s.frames[:len(s.frames)-1] }

func (s *shadowStack) len() int { return len(s.frames) }

func (s *shadowStack) reset() { s.frames = s.frames[:0] }

// calls returns the descriptors innermost first.
func (s *shadowStack) calls() []string {
	calls := make([]string, len(s.frames))
	for i, desc := range s.frames {
		calls[len(calls)-1-i] = desc
	}
	return calls
}

func (s *shadowStack) String() string {
	var b strings.Builder
	for _, desc := range s.calls() {
		b.WriteString(desc)
		b.WriteByte('\n')
	}
	return b.String()
}
