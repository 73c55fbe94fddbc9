package vthread

// Frame is a resumable computation occupying one level of a virtual thread's
// call stack.
//
// Each call to Next advances the frame by one step. A step ends in one of
// three ways:
//
//   - Next returns false: the frame completed and cannot be advanced again.
//   - Next returns true and Recv returns nil: the frame suspends until the
//     next tick.
//   - Next returns true and Recv returns a frame: the frame calls into a
//     sub-procedure, which the thread pushes and steps in the same tick.
type Frame interface {
	// Next advances the frame by one step, returning false once the frame
	// has completed.
	Next() bool

	// Recv returns the frame yielded by the last call to Next, or nil if
	// the frame yielded no value. The result is undefined after Next has
	// returned false.
	Recv() Frame

	// Started reports whether Next was ever called on the frame. Only
	// pristine frames may be pushed on a thread's stack.
	Started() bool
}

// Func returns a frame stepping fn once per call to Next.
//
// fn returns the frame it calls into (nil to suspend until the next tick), or
// done=true once the computation is over. It is the explicit state machine
// counterpart of Go, for frames that keep their resume point in their own
// variables instead of on a goroutine stack.
func Func(fn func() (call Frame, done bool)) Frame {
	return &funcFrame{fn: fn}
}

type funcFrame struct {
	fn      func() (Frame, bool)
	call    Frame
	started bool
	done    bool
}

func (f *funcFrame) Next() bool {
	if f.done {
		return false
	}
	f.started = true
	call, done := f.fn()
	if done {
		f.done, f.call = true, nil
		return false
	}
	f.call = call
	return true
}

func (f *funcFrame) Recv() Frame { return f.call }

func (f *funcFrame) Started() bool { return f.started }
