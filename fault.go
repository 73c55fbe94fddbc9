package vthread

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Fault is raised out of Thread.Tick, in builds with the vtdebug tag, when a
// frame panicked.
//
// Its message is the message of the original panic; its trace follows the
// logical call chain of the thread across the frames suspended on its stack.
type Fault struct {
	// Value is the value the frame panicked with.
	Value any
	// Thread is the name of the thread the frame belonged to.
	Thread string
	// Stack is the rewritten trace; see RewriteStack.
	Stack string
}

func (f *Fault) Error() string { return fmt.Sprint(f.Value) }

// Unwrap returns the panic value if it is an error.
func (f *Fault) Unwrap() error {
	err, _ := f.Value.(error)
	return err
}

// Format prints the message for %v and %s, and the message followed by the
// rewritten trace for %+v.
func (f *Fault) Format(w fmt.State, verb rune) {
	switch verb {
	case 'v':
		if w.Flag('+') {
			io.WriteString(w, f.Error())
			io.WriteString(w, "\n\n")
			io.WriteString(w, f.Stack)
			return
		}
		fallthrough
	case 's':
		io.WriteString(w, f.Error())
	case 'q':
		fmt.Fprintf(w, "%q", f.Error())
	}
}

func (t *Thread) recoverFault() {
	v := recover()
	if v == nil {
		return
	}
	if cv := contractViolation(v); cv != nil {
		panic(cv)
	}
	panic(t.wrapFault(v, debug.Stack()))
}

// contractViolation returns the violation v carries, either directly or as the
// value of a panic raised in a coroutine.
func contractViolation(v any) *ContractViolation {
	if p, ok := v.(*Panic); ok {
		v = p.Value
	}
	cv, _ := v.(*ContractViolation)
	return cv
}

func (t *Thread) wrapFault(v any, native []byte) *Fault {
	if p, ok := v.(*Panic); ok {
		v, native = p.Value, p.Stack
	}
	if f, ok := v.(*Fault); ok {
		return f
	}
	f := &Fault{
		Value:  v,
		Thread: t.name,
		Stack:  RewriteStack(native, t.rt.symbolize, t.shadow.calls()),
	}
	t.rt.log().Debug("thread fault", "thread", t.name, "depth", t.stack.len(), "error", f.Error())
	return f
}
