package vthread

import "log/slog"

// Runtime is the execution context shared by the virtual threads it creates.
//
// It tracks which thread is currently stepping and carries the collaborators
// threads report to: the logger, the asserter receiving contract violations,
// and the symbolizer used to render diagnostic traces.
//
// A Runtime is not safe for concurrent use; all of its threads must be driven
// from one goroutine at a time. Independent runtimes may run in parallel.
type Runtime struct {
	running   *Thread
	logger    *slog.Logger
	asserter  Asserter
	symbolize Symbolizer
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger receiving thread lifecycle records. The default
// is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

// WithAsserter sets the asserter receiving contract violations. The default
// is PanicAsserter.
func WithAsserter(a Asserter) Option {
	return func(rt *Runtime) { rt.asserter = a }
}

// WithSymbolizer sets the function used to map raw function names of a trace
// to the function that declared them. The default is CollapseClosure.
func WithSymbolizer(s Symbolizer) Option {
	return func(rt *Runtime) { rt.symbolize = s }
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		asserter:  PanicAsserter{},
		symbolize: CollapseClosure,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Default is the runtime used by the package level constructors.
var Default = NewRuntime()

// Running returns the thread currently stepping, or nil when no thread of the
// runtime is within a call to Tick.
//
// When a thread is driven from a frame of another thread, Running returns the
// innermost one, and the outer thread again once the inner tick returned.
func (rt *Runtime) Running() *Thread { return rt.running }

// NewThread creates a thread in the None state.
func (rt *Runtime) NewThread(name string) *Thread {
	return &Thread{rt: rt, name: name}
}

// NewCluster creates a cluster in the None state. By default the cluster
// waits for its children before reporting completion.
func (rt *Runtime) NewCluster(name string, opts ...ClusterOption) *Cluster {
	c := &Cluster{
		Thread:          Thread{rt: rt, name: name},
		waitForChildren: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewThread creates a thread of the Default runtime.
func NewThread(name string) *Thread { return Default.NewThread(name) }

// NewCluster creates a cluster of the Default runtime.
func NewCluster(name string, opts ...ClusterOption) *Cluster {
	return Default.NewCluster(name, opts...)
}

// RunningThread returns the thread of the Default runtime currently stepping.
func RunningThread() *Thread { return Default.Running() }

func (rt *Runtime) enter(t *Thread) (prev *Thread) {
	t.check(!t.ticking, "tick", "thread is already stepping")
	prev = rt.running
	rt.running, t.ticking = t, true
	return prev
}

func (rt *Runtime) leave(t *Thread, prev *Thread) {
	rt.running, t.ticking = prev, false
}

func (rt *Runtime) log() *slog.Logger {
	if rt.logger != nil {
		return rt.logger
	}
	return slog.Default()
}
