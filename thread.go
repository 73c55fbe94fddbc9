package vthread

import "fmt"

// State is the lifecycle state of a virtual thread.
type State uint8

const (
	// None is the state of a new or reset thread.
	None State = iota
	// Running is the state of a thread between Begin and End.
	Running
	// Finished is the state of a thread after End, until Reset.
	Finished
)

func (s State) String() string {
	switch s {
	case None:
		return "none"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Runnable is a virtual thread that can be hosted by a Cluster or driven by
// the frame returned from Start. Both *Thread and *Cluster implement it.
type Runnable interface {
	Begin(root Frame)
	Tick() bool
	End()
	Reset()
	IsFinished() bool
	Start(root Frame) Frame
}

var (
	_ Runnable = (*Thread)(nil)
	_ Runnable = (*Cluster)(nil)
)

// Thread is a virtual thread: a stack of frames advanced by one step per tick.
//
// The frame at the top of the stack is stepped on each tick. When it yields a
// nested frame, the nested frame is pushed and stepped within the same tick;
// when it completes, it is popped and its caller resumes within the same tick.
// Only a frame yielding no value ends the tick early.
type Thread struct {
	rt         *Runtime
	name       string
	state      State
	background bool
	ticking    bool
	lock       string
	stack      stack
	shadow     shadowStack
}

// Name returns the name the thread was created with.
func (t *Thread) Name() string { return t.name }

// Runtime returns the runtime the thread belongs to.
func (t *Thread) Runtime() *Runtime { return t.rt }

// State returns the lifecycle state of the thread.
func (t *Thread) State() State { return t.state }

// IsFinished reports whether the thread is in the Finished state.
func (t *Thread) IsFinished() bool { return t.state == Finished }

// IsInBackground reports whether the background marker is set.
func (t *Thread) IsInBackground() bool { return t.background }

// SetBackground sets or clears the background marker. The marker only records
// that the thread is not actively driven; it has no effect on stepping.
func (t *Thread) SetBackground(background bool) {
	t.checkUnlocked("background")
	t.background = background
}

// Depth returns the number of frames on the thread's stack.
func (t *Thread) Depth() int { return t.stack.len() }

// CallStack renders the diagnostic shadow stack, innermost call first. It is
// empty unless the program is built with the vtdebug tag.
func (t *Thread) CallStack() string { return t.shadow.String() }

// Begin clears the stack, pushes root and moves the thread to Running. The
// thread must be in the None state.
func (t *Thread) Begin(root Frame) {
	t.check(t.state == None, "begin", "thread is %s", t.state)
	t.stack.reset()
	t.shadow.reset()
	t.push(root, nil)
	t.setState("begin", Running)
	t.rt.log().Debug("thread begin", "thread", t.name)
}

// Tick advances the thread by one step and reports whether its stack drained.
// The thread must be Running. While its frames are stepped, the thread is the
// one returned by Runtime.Running. Cluster.Tick steps the children first, each
// of them being the running thread for the duration of its own step, and only
// then the cluster's stack.
//
// A panic raised by a frame propagates out of Tick. With the vtdebug tag, it
// is wrapped in a *Fault first. The thread must be discarded after a fault.
func (t *Thread) Tick() bool {
	t.check(t.state == Running, "tick", "thread is %s", t.state)
	prev := t.rt.enter(t)
	defer t.rt.leave(t, prev)
	if Debug {
		defer t.recoverFault()
	}
	return t.run()
}

// End moves the thread to Finished once Tick reported that its stack drained.
func (t *Thread) End() {
	t.check(t.stack.len() == 0, "end", "%d stack frames not finished", t.stack.len())
	t.setState("end", Finished)
	t.rt.log().Debug("thread end", "thread", t.name)
}

// Reset moves a Finished thread back to None so it can begin again.
func (t *Thread) Reset() {
	t.check(t.state == Finished, "reset", "thread is %s", t.state)
	t.setState("reset", None)
	t.rt.log().Debug("thread reset", "thread", t.name)
}

// Start returns the frame driving the whole lifecycle of the thread: its first
// step begins the thread with root, each step ticks the thread once, and the
// step on which the stack drains ends the thread and completes the frame.
//
// The returned frame never yields a value; it can be advanced by a host loop,
// added to a Cluster, or called from a frame of another thread.
func (t *Thread) Start(root Frame) Frame {
	return &runner{thread: t, root: root}
}

// StateLock is held while a thread's state must not change. It is returned by
// LockState and released by Unlock.
type StateLock struct {
	t    *Thread
	prev string
}

// LockState forbids state changes until the returned lock is released. Any
// attempt to change the state meanwhile is a contract violation carrying
// reason. Locks nest; releasing one restores the previous reason.
//
//	defer t.LockState("reason").Unlock()
func (t *Thread) LockState(reason string) StateLock {
	l := StateLock{t: t, prev: t.lock}
	t.lock = reason
	return l
}

// Unlock releases the lock.
func (l StateLock) Unlock() {
	if l.t != nil {
		l.t.lock = l.prev
	}
}

func (t *Thread) checkUnlocked(op string) {
	t.check(t.lock == "", op, "state can't be changed because %s", t.lock)
}

func (t *Thread) setState(op string, s State) {
	t.checkUnlocked(op)
	t.state = s
}

// run steps the stack until it drains or its top frame yields no value.
func (t *Thread) run() bool {
	done := true
	for t.stack.len() > 0 {
		top := t.stack.top()
		for done = !top.Next(); done; done = !top.Next() {
			// A completed frame returns to its caller, which resumes
			// within the same tick.
			t.pop()
			if t.stack.len() == 0 {
				break
			}
			top = t.stack.top()
		}
		if done {
			break
		}
		if call := top.Recv(); call != nil {
			// Calls start in the tick they are made in.
			t.push(call, top)
			continue
		}
		break
	}
	return done
}

func (t *Thread) push(f, caller Frame) {
	t.check(!f.Started(), "push", "frame %T was started before being pushed", f)
	if Debug && caller != nil {
		t.shadow.push(t.rt.describe(caller, f))
	}
	t.stack.push(f)
	if Debug {
		t.check(t.stack.len() == t.shadow.len()+1, "push", "shadow stack out of sync at depth %d", t.stack.len())
	}
}

func (t *Thread) pop() {
	if Debug {
		t.check(t.stack.len() == t.shadow.len()+1, "pop", "shadow stack out of sync at depth %d", t.stack.len())
		if t.stack.len() > 1 {
			t.shadow.pop()
		}
	}
	t.stack.pop()
}

type runner struct {
	thread  Runnable
	root    Frame
	started bool
	done    bool
}

func (r *runner) Next() bool {
	if r.done {
		return false
	}
	if !r.started {
		r.started = true
		r.thread.Begin(r.root)
		r.root = nil
	}
	if !r.thread.Tick() {
		return true
	}
	r.thread.End()
	r.done = true
	return false
}

func (r *runner) Recv() Frame { return nil }

func (r *runner) Started() bool { return r.started }
