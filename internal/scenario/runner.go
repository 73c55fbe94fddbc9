package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stealthrocket/vthread"
)

// Event is something a procedure did during a tick.
type Event struct {
	Tick    int    `json:"tick" msgpack:"tick"`
	Thread  string `json:"thread" msgpack:"thread"`
	Kind    string `json:"kind" msgpack:"kind"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
}

// TickReport summarizes one tick of a run.
type TickReport struct {
	Tick   int     `json:"tick" msgpack:"tick"`
	Done   bool    `json:"done" msgpack:"done"`
	Events []Event `json:"events,omitempty" msgpack:"events,omitempty"`
}

// RunInfo identifies a run.
type RunInfo struct {
	ID       uuid.UUID `json:"id" msgpack:"id"`
	Scenario string    `json:"scenario" msgpack:"scenario"`
}

// Reporter receives the progress of a run.
type Reporter interface {
	Start(info RunInfo) error
	Report(tick TickReport) error
}

// ErrTickLimit is returned by Run when the scenario did not finish within its
// tick budget.
var ErrTickLimit = errors.New("tick limit reached")

// DefaultMaxTicks is the tick budget of scenarios that do not set one.
const DefaultMaxTicks = 1000

// Runner drives a scenario on a virtual thread.
type Runner struct {
	// ID identifies the run in reports.
	ID uuid.UUID

	scenario *Scenario
	rt       *vthread.Runtime
	root     vthread.Runnable
	cluster  *vthread.Cluster
	tick     int
	events   []Event
	spawned  map[string]int
	procs    []vthread.Coroutine[vthread.Frame, struct{}]
}

// NewRunner creates a runner for s, whose threads belong to a new runtime
// configured with opts. s must be valid.
func NewRunner(s *Scenario, opts ...vthread.Option) *Runner {
	r := &Runner{
		ID:       uuid.Must(uuid.NewV7()),
		scenario: s,
		rt:       vthread.NewRuntime(opts...),
		spawned:  make(map[string]int),
	}
	if s.Cluster {
		r.cluster = r.rt.NewCluster(s.Name, vthread.WaitForChildren(s.WaitsForChildren()))
		r.root = r.cluster
	} else {
		r.root = r.rt.NewThread(s.Name)
	}
	return r
}

// Run ticks the scenario until its root thread finishes, the tick budget is
// exhausted, or ctx is canceled. Ticks are separated by the scenario interval.
//
// A panic raised while ticking is returned as an error wrapping the panic
// value when it is an error (a *vthread.Fault in vtdebug builds).
func (r *Runner) Run(ctx context.Context, rep Reporter) (err error) {
	if err := rep.Start(RunInfo{ID: r.ID, Scenario: r.scenario.Name}); err != nil {
		return err
	}

	maxTicks := r.scenario.MaxTicks
	if maxTicks == 0 {
		maxTicks = DefaultMaxTicks
	}

	var ticks <-chan time.Time
	if r.scenario.Interval > 0 {
		ticker := time.NewTicker(r.scenario.Interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	defer r.stop()
	defer func() {
		if v := recover(); v != nil {
			err = r.fault(v, rep)
		}
	}()

	run := r.root.Start(r.proc(r.scenario.Root))
	for r.tick = 1; r.tick <= maxTicks; r.tick++ {
		if r.tick > 1 && ticks != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticks:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		done := !run.Next()
		if done {
			r.emit(r.scenario.Name, "done", "")
		}
		if err := r.flush(rep, done); err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("%w: %q did not finish after %d ticks", ErrTickLimit, r.scenario.Name, maxTicks)
}

// Run drives s on a new runner and reports its progress to rep.
func Run(ctx context.Context, s *Scenario, rep Reporter, opts ...vthread.Option) error {
	return NewRunner(s, opts...).Run(ctx, rep)
}

func (r *Runner) fault(v any, rep Reporter) error {
	var err error
	if e, ok := v.(error); ok {
		err = fmt.Errorf("tick %d: %w", r.tick, e)
	} else {
		err = fmt.Errorf("tick %d: %v", r.tick, v)
	}

	thread := r.scenario.Name
	var fault *vthread.Fault
	if errors.As(err, &fault) {
		thread = fault.Thread
	}
	r.emit(thread, "fault", fmt.Sprint(v))
	if ferr := r.flush(rep, false); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

func (r *Runner) flush(rep Reporter, done bool) error {
	report := TickReport{Tick: r.tick, Done: done, Events: r.events}
	r.events = nil
	return rep.Report(report)
}

func (r *Runner) emit(thread, kind, message string) {
	r.events = append(r.events, Event{Tick: r.tick, Thread: thread, Kind: kind, Message: message})
}

func (r *Runner) running() string {
	if th := r.rt.Running(); th != nil {
		return th.Name()
	}
	return r.scenario.Name
}

func (r *Runner) proc(name string) vthread.Frame {
	c := vthread.New[vthread.Frame, struct{}](func() { r.exec(name) })
	r.procs = append(r.procs, c)
	return c
}

// stop interrupts the procedures still suspended when a run ends without
// draining, so that their goroutines exit.
func (r *Runner) stop() {
	for _, c := range r.procs {
		if !c.Done() {
			c.Stop()
			c.Next()
		}
	}
	r.procs = nil
}

func (r *Runner) exec(name string) {
	for _, op := range r.scenario.Procs[name] {
		switch op.Kind() {
		case "wait":
			vthread.Sleep(*op.Wait)
		case "log":
			r.emit(r.running(), "log", op.Log)
		case "call":
			r.emit(r.running(), "call", op.Call)
			vthread.Call(r.proc(op.Call))
		case "spawn":
			r.spawned[op.Spawn]++
			child := fmt.Sprintf("%s#%d", op.Spawn, r.spawned[op.Spawn])
			r.emit(r.running(), "spawn", child)
			r.cluster.AddChild(r.rt.NewThread(child), r.proc(op.Spawn))
		case "fail":
			panic(errors.New(op.Fail))
		case "background":
			th := r.rt.Running()
			th.SetBackground(*op.Background)
			r.emit(th.Name(), "background", fmt.Sprint(*op.Background))
		}
	}
}
