package vthread

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/stealthrocket/vthread/internal/gls"
)

// Coroutine instances expose APIs allowing the program to drive the execution
// of coroutines.
//
// The type parameter R represents the type of values that the program can
// receive from the coroutine (what it yields), and the type parameter S is
// what the program can send back to a coroutine yield point.
//
// A Coroutine[Frame, struct{}] is a Frame; see Go.
type Coroutine[R, S any] struct{ ctx *Context[R, S] }

// Context is the state shared between a coroutine and the program driving it.
type Context[R, S any] struct {
	recv R
	send S
	next chan struct{}

	// Entry point of the coroutine, captured so the goroutine backing the
	// coroutine can be started on the first call to Next.
	entry func()

	started bool
	stop    bool
	done    bool
	fault   *Panic

	// Call site of the last Call made by the coroutine, only recorded in
	// builds with diagnostics enabled.
	site CallSite
}

// New creates a new coroutine which executes f as entry point.
//
// The goroutine backing the coroutine is not started until the first call to
// Next.
func New[R, S any](f func()) Coroutine[R, S] {
	return Coroutine[R, S]{ctx: &Context[R, S]{entry: f}}
}

// Recv returns the last value that the coroutine has yielded. The method must
// be called only after a call to Next has returned true, or the return value is
// undefined. Calling the method multiple times after a call to Next returns the
// same value each time.
func (c Coroutine[R, S]) Recv() R { return c.ctx.recv }

// Send sets the value that will be seen by the coroutine after it resumes from
// a yield point. Calling the method multiple times before a call to Next does
// not result in sending multiple values, only the last value sent will be seen
// by the coroutine.
func (c Coroutine[R, S]) Send(v S) { c.ctx.send = v }

// Stop interrupts the coroutine. On the next call to Next, the coroutine will
// not return from its yield point; instead, it unwinds its call stack, calling
// each defer statement in the inverse order that they were declared.
//
// Stop is idempotent, calling it multiple times or after completion of the
// coroutine has no effect.
func (c Coroutine[R, S]) Stop() { c.ctx.stop = true }

// Done returns true if the coroutine completed, either because it was stopped
// or because its function returned.
func (c Coroutine[R, S]) Done() bool { return c.ctx.done }

// Started reports whether Next was ever called on the coroutine.
func (c Coroutine[R, S]) Started() bool { return c.ctx.started }

// CallSite returns the location of the last Call made by the coroutine. It is
// the zero value unless diagnostics are enabled.
func (c Coroutine[R, S]) CallSite() CallSite { return c.ctx.site }

// Next executes the coroutine until its next yield point, or until completion.
// The method returns true if the coroutine entered a yield point, after which
// the program should call Recv to obtain the value that the coroutine yielded,
// and Send to set the value that will be returned from the yield point.
//
// If the coroutine panics, Next panics with a *Panic carrying the original
// value and the trace of the coroutine's goroutine.
func (c Coroutine[R, S]) Next() bool {
	ctx := c.ctx
	if ctx.done {
		return false
	}
	if !ctx.started {
		ctx.started = true
		if ctx.stop {
			ctx.done = true
			return false
		}
		ctx.next = make(chan struct{})
		go ctx.run()
	}

	ctx.next <- struct{}{}
	if _, ok := <-ctx.next; ok {
		return true
	}

	var zero R
	ctx.recv = zero
	if p := ctx.fault; p != nil {
		ctx.fault = nil
		panic(p)
	}
	return false
}

func (c *Context[R, S]) run() {
	g := gls.Context()
	g.Store(c)

	defer func() {
		// recover returns nil when the goroutine exits through
		// runtime.Goexit after a Stop.
		if v := recover(); v != nil {
			c.fault = &Panic{Value: v, Stack: debug.Stack()}
		}
		g.Clear()
		c.done = true
		close(c.next)
	}()

	<-c.next
	c.entry()
}

// Yield sends v to the program driving the coroutine and pauses the execution
// of the coroutine until the next call to Next.
func (c *Context[R, S]) Yield(v R) S {
	if c.stop {
		panic("cannot yield from a coroutine that has been stopped")
	}
	var zero S
	c.send = zero
	c.recv = v
	c.next <- struct{}{}
	<-c.next
	if c.stop {
		runtime.Goexit()
	}
	return c.send
}

// Run executes a coroutine to completion, calling f for each value that the
// coroutine yields, and sending back each value that f returns.
func Run[R, S any](c Coroutine[R, S], f func(R) S) {
	// The coroutine is run to completion, but f might panic in which case we
	// don't want to leave it in an uncompleted state and interrupt it instead.
	defer func() {
		if !c.Done() {
			c.Stop()
			c.Next()
		}
	}()

	for c.Next() {
		r := c.Recv()
		s := f(r)
		c.Send(s)
	}
}

// Yield sends v to the program driving the coroutine and pauses the execution
// of the coroutine until the Next method is called again.
//
// The function panics when called on a stack where no active coroutine exists,
// or if the type parameters do not match those of the coroutine.
func Yield[R, S any](v R) S {
	return LoadContext[R, S]().Yield(v)
}

// LoadContext returns the context for the current coroutine.
//
// The function panics when called on a stack where no active coroutine exists,
// or if the type parameters do not match those of the coroutine.
func LoadContext[R, S any]() *Context[R, S] {
	switch c := gls.Context().Load().(type) {
	case *Context[R, S]:
		return c
	case nil:
		panic("vthread.Yield: not called from a coroutine stack")
	default:
		panic("vthread.Yield: coroutine type mismatch")
	}
}

// Panic is raised on the goroutine driving a coroutine when the coroutine
// body panicked.
type Panic struct {
	// Value is the value the coroutine panicked with.
	Value any
	// Stack is the trace of the coroutine's goroutine at the time of the
	// panic, in the format of runtime/debug.Stack.
	Stack []byte
}

func (p *Panic) Error() string { return fmt.Sprint(p.Value) }

// Unwrap returns the panic value if it is an error.
func (p *Panic) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

// Go returns a frame executing f on a coroutine.
//
// Inside f, Wait suspends the frame until the next tick and Call runs a nested
// frame to completion, both without an explicit handle on the coroutine.
func Go(f func()) Frame {
	return New[Frame, struct{}](f)
}

// Wait suspends the calling frame until the next tick.
func Wait() {
	Yield[Frame, struct{}](nil)
}

// Call runs f as a sub-procedure of the calling frame. The thread pushes f and
// takes its first step in the same tick; Call returns once f completed.
func Call(f Frame) {
	c := LoadContext[Frame, struct{}]()
	if Debug {
		c.site = callerSite(2)
	}
	c.Yield(f)
}

// Sleep suspends the calling frame for n ticks.
func Sleep(n int) {
	for range n {
		Wait()
	}
}

// WaitUntil suspends the calling frame until cond returns true. cond is
// evaluated once per tick, starting immediately.
func WaitUntil(cond func() bool) {
	for !cond() {
		Wait()
	}
}
