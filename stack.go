package vthread

// stack is the call stack of a virtual thread.
//
// The frame at the top of the stack is the one being stepped; the frames below
// it are its callers, each suspended at the Call that pushed the frame above.
type stack struct {
	frames []Frame
}

// top returns the top of the call stack.
func (s *stack) top() Frame {
	if len(s.frames) == 0 {
		panic("no stack frames")
	}
	return s.frames[len(s.frames)-1]
}

func (s *stack) push(f Frame) {
	s.frames = append(s.frames, f)
}

// pop pops the topmost stack frame after it completed.
func (s *stack) pop() Frame {
	i := len(s.frames) - 1
	f := s.frames[i]
	s.frames[i] = nil
	s.frames = s.frames[:i]
	return f
}

func (s *stack) len() int { return len(s.frames) }

func (s *stack) reset() {
	clear(s.frames)
	s.frames = s.frames[:0]
}
