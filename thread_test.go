package vthread

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestThreadTicks(t *testing.T) {
	tests := []struct {
		name  string
		root  func() Frame
		ticks []bool
	}{
		{
			name:  "root completes immediately",
			root:  func() Frame { return waits(0) },
			ticks: []bool{true},
		},

		{
			name:  "root suspends once",
			root:  func() Frame { return waits(1) },
			ticks: []bool{false, true},
		},

		{
			name:  "nested frame completes immediately",
			root:  func() Frame { return calls(waits(0)) },
			ticks: []bool{true},
		},

		{
			name:  "deeply nested frames complete immediately",
			root:  func() Frame { return calls(calls(calls(waits(0)), waits(0))) },
			ticks: []bool{true},
		},

		{
			name:  "nested frame suspends twice",
			root:  func() Frame { return calls(waits(2), waits(0)) },
			ticks: []bool{false, false, true},
		},

		{
			name:  "sequential calls each suspending",
			root:  func() Frame { return calls(waits(1), waits(1), waits(1)) },
			ticks: []bool{false, false, false, true},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			th := NewRuntime().NewThread(test.name)
			th.Begin(test.root())

			var ticks []bool
			for {
				done := th.Tick()
				ticks = append(ticks, done)
				if done || len(ticks) > len(test.ticks) {
					break
				}
			}
			if !reflect.DeepEqual(ticks, test.ticks) {
				t.Errorf("unexpected tick results: want=%v got=%v", test.ticks, ticks)
			}

			th.End()
			if th.State() != Finished {
				t.Errorf("wrong state after end: want=%v got=%v", Finished, th.State())
			}
			if th.Depth() != 0 {
				t.Errorf("stack not empty after end: depth=%d", th.Depth())
			}
		})
	}
}

func TestThreadLifecycle(t *testing.T) {
	th := NewRuntime().NewThread("main")
	if th.State() != None {
		t.Fatalf("wrong initial state: want=%v got=%v", None, th.State())
	}

	th.Begin(waits(0))
	if th.State() != Running || th.Depth() != 1 {
		t.Fatalf("wrong state after begin: state=%v depth=%d", th.State(), th.Depth())
	}
	if !th.Tick() {
		t.Fatal("root frame completing immediately did not drain the stack")
	}
	th.End()
	if !th.IsFinished() {
		t.Fatalf("thread not finished after end: state=%v", th.State())
	}

	th.Reset()
	if th.State() != None {
		t.Fatalf("wrong state after reset: want=%v got=%v", None, th.State())
	}

	th.Begin(waits(1))
	if th.Tick() {
		t.Error("reused thread drained its stack early")
	}
}

func TestThreadCallStartsInSameTick(t *testing.T) {
	tick := 0
	issuedAt, firstStepAt := 0, 0

	nested := Func(func() (Frame, bool) {
		if firstStepAt == 0 {
			firstStepAt = tick
		}
		return nil, true
	})

	step := 0
	root := Func(func() (Frame, bool) {
		step++
		switch step {
		case 1:
			return nil, false
		case 2:
			issuedAt = tick
			return nested, false
		default:
			return nil, true
		}
	})

	th := NewRuntime().NewThread("main")
	th.Begin(root)
	for tick = 1; !th.Tick(); tick++ {
	}

	if issuedAt != 2 {
		t.Errorf("call issued on the wrong tick: want=2 got=%d", issuedAt)
	}
	if firstStepAt != issuedAt {
		t.Errorf("nested frame first stepped on tick %d, called on tick %d", firstStepAt, issuedAt)
	}
	if tick != 2 {
		t.Errorf("caller did not resume in the tick its callee completed: done on tick %d", tick)
	}
}

func TestThreadCoroutineFrames(t *testing.T) {
	var trace []string
	th := NewRuntime().NewThread("main")
	th.Begin(Go(func() {
		trace = append(trace, "a")
		Call(Go(func() {
			trace = append(trace, "b")
			Wait()
			trace = append(trace, "c")
		}))
		trace = append(trace, "d")
		Sleep(2)
		trace = append(trace, "e")
	}))

	want := [][]string{
		{"a", "b"},
		{"a", "b", "c", "d"},
		{"a", "b", "c", "d"},
		{"a", "b", "c", "d", "e"},
	}
	for i, w := range want {
		done := th.Tick()
		if !reflect.DeepEqual(trace, w) {
			t.Fatalf("tick %d: want=%v got=%v", i+1, w, trace)
		}
		if last := i == len(want)-1; done != last {
			t.Fatalf("tick %d: want done=%t got=%t", i+1, last, done)
		}
	}
	th.End()
}

func TestThreadWaitUntil(t *testing.T) {
	ready := false
	th := NewRuntime().NewThread("main")
	th.Begin(Go(func() {
		WaitUntil(func() bool { return ready })
	}))

	for i := 0; i < 3; i++ {
		if th.Tick() {
			t.Fatalf("thread completed on tick %d before its condition held", i+1)
		}
	}
	ready = true
	if !th.Tick() {
		t.Error("thread did not complete on the tick its condition held")
	}
}

func TestThreadStart(t *testing.T) {
	th := NewRuntime().NewThread("main")
	run := th.Start(waits(2))

	if th.State() != None {
		t.Fatalf("thread began before the first step of its run frame: state=%v", th.State())
	}

	steps := 0
	for run.Next() {
		steps++
		if run.Recv() != nil {
			t.Fatal("run frame yielded a value")
		}
		if th.State() != Running {
			t.Fatalf("wrong state while running: want=%v got=%v", Running, th.State())
		}
	}
	if steps != 2 {
		t.Errorf("wrong number of suspended steps: want=2 got=%d", steps)
	}
	if !th.IsFinished() {
		t.Errorf("thread not finished after its run frame completed: state=%v", th.State())
	}
	if run.Next() {
		t.Error("completed run frame resumed")
	}
}

func TestThreadRunning(t *testing.T) {
	rt := NewRuntime()
	outer := rt.NewThread("outer")
	inner := rt.NewThread("inner")

	var seen []string
	record := func() {
		if th := rt.Running(); th != nil {
			seen = append(seen, th.Name())
		} else {
			seen = append(seen, "<nil>")
		}
	}

	innerRoot := Func(func() (Frame, bool) {
		record()
		return nil, true
	})

	step := 0
	outerRoot := Func(func() (Frame, bool) {
		step++
		record()
		if step == 1 {
			return inner.Start(innerRoot), false
		}
		return nil, true
	})

	outer.Begin(outerRoot)
	if !outer.Tick() {
		t.Fatal("outer thread did not complete in one tick")
	}
	record()

	want := []string{"outer", "inner", "outer", "<nil>"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("unexpected running threads: want=%v got=%v", want, seen)
	}
	if !inner.IsFinished() {
		t.Errorf("inner thread not finished: state=%v", inner.State())
	}
}

func TestRunningThread(t *testing.T) {
	th := NewThread("main")
	if th.Runtime() != Default {
		t.Fatal("package level thread does not belong to the default runtime")
	}

	var running *Thread
	th.Begin(Func(func() (Frame, bool) {
		running = RunningThread()
		return nil, true
	}))
	if !th.Tick() {
		t.Fatal("thread did not complete in one tick")
	}
	th.End()

	if running != th {
		t.Errorf("wrong running thread during the tick: want=%v got=%v", th, running)
	}
	if th := RunningThread(); th != nil {
		t.Errorf("running thread not cleared after the tick: %v", th.Name())
	}
}

func TestThreadRunningClearedOnPanic(t *testing.T) {
	rt := NewRuntime()
	th := rt.NewThread("main")
	th.Begin(Func(func() (Frame, bool) { panic("boom") }))

	func() {
		defer func() { recover() }()
		th.Tick()
	}()

	if rt.Running() != nil {
		t.Errorf("running thread not cleared after a panic: %v", rt.Running().Name())
	}
}

func TestThreadBackground(t *testing.T) {
	th := NewRuntime().NewThread("main")
	if th.IsInBackground() {
		t.Fatal("new thread is in background")
	}
	th.SetBackground(true)
	if !th.IsInBackground() || th.State() != None {
		t.Fatalf("background marker changed the state: background=%t state=%v", th.IsInBackground(), th.State())
	}
	th.Begin(waits(0))
	if !th.IsInBackground() || th.State() != Running {
		t.Fatalf("begin changed the background marker: background=%t state=%v", th.IsInBackground(), th.State())
	}
	th.SetBackground(false)
	if th.IsInBackground() {
		t.Error("background marker not cleared")
	}
}

func TestThreadContractViolations(t *testing.T) {
	started := waits(1)
	started.Next()

	tests := []struct {
		name string
		op   string
		f    func(th *Thread)
	}{
		{
			name: "begin running thread",
			op:   "begin",
			f: func(th *Thread) {
				th.Begin(waits(1))
				th.Begin(waits(1))
			},
		},

		{
			name: "begin finished thread",
			op:   "begin",
			f: func(th *Thread) {
				th.Begin(waits(0))
				th.Tick()
				th.End()
				th.Begin(waits(0))
			},
		},

		{
			name: "reset new thread",
			op:   "reset",
			f:    func(th *Thread) { th.Reset() },
		},

		{
			name: "reset running thread",
			op:   "reset",
			f: func(th *Thread) {
				th.Begin(waits(1))
				th.Reset()
			},
		},

		{
			name: "tick new thread",
			op:   "tick",
			f:    func(th *Thread) { th.Tick() },
		},

		{
			name: "end with frames on the stack",
			op:   "end",
			f: func(th *Thread) {
				th.Begin(waits(1))
				th.Tick()
				th.End()
			},
		},

		{
			name: "push started frame",
			op:   "push",
			f: func(th *Thread) {
				th.Begin(calls(started))
				th.Tick()
			},
		},

		{
			name: "tick from own frame",
			op:   "tick",
			f: func(th *Thread) {
				th.Begin(Func(func() (Frame, bool) {
					th.Tick()
					return nil, true
				}))
				th.Tick()
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			th := NewRuntime().NewThread(test.name)
			v := recoverViolation(func() { test.f(th) })
			if v == nil {
				t.Fatal("no contract violation")
			}
			if v.Op != test.op {
				t.Errorf("wrong operation: want=%q got=%q", test.op, v.Op)
			}
			if v.Thread != test.name {
				t.Errorf("wrong thread: want=%q got=%q", test.name, v.Thread)
			}
			if !errors.Is(v, ErrContractViolation) {
				t.Error("violation does not match ErrContractViolation")
			}
		})
	}
}

func TestThreadLockState(t *testing.T) {
	th := NewRuntime().NewThread("main")

	lock := th.LockState("busy")
	v := recoverViolation(func() { th.Begin(waits(0)) })
	if v == nil {
		t.Fatal("begin did not fail while the state was locked")
	}
	if !strings.Contains(v.Reason, "busy") {
		t.Errorf("violation does not carry the lock reason: %q", v.Reason)
	}
	if v := recoverViolation(func() { th.SetBackground(true) }); v == nil {
		t.Error("background marker changed while the state was locked")
	}

	lock.Unlock()
	th.Begin(waits(0))
	if th.State() != Running {
		t.Errorf("begin failed after unlock: state=%v", th.State())
	}
}

func TestThreadLockStateNested(t *testing.T) {
	th := NewRuntime().NewThread("main")

	outer := th.LockState("outer")
	inner := th.LockState("inner")
	inner.Unlock()

	v := recoverViolation(func() { th.SetBackground(true) })
	if v == nil || !strings.Contains(v.Reason, "outer") {
		t.Errorf("outer lock not restored: %v", v)
	}
	outer.Unlock()
	th.SetBackground(true)
}

func TestLogAsserter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	th := NewRuntime(WithAsserter(LogAsserter{Logger: logger})).NewThread("main")

	th.Reset()

	out := buf.String()
	for _, want := range []string{"contract violation", "thread=main", "op=reset"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output does not contain %q:\n%s", want, out)
		}
	}
	if th.State() != None {
		t.Errorf("wrong state after tolerated violation: %v", th.State())
	}
}

func TestThreadLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	th := NewRuntime(WithLogger(logger)).NewThread("main")

	th.Begin(waits(0))
	th.Tick()
	th.End()
	th.Reset()

	out := buf.String()
	for _, want := range []string{"thread begin", "thread end", "thread reset"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output does not contain %q:\n%s", want, out)
		}
	}
}

func recoverViolation(f func()) (v *ContractViolation) {
	defer func() {
		if err, ok := recover().(error); ok {
			errors.As(err, &v)
		}
	}()
	f()
	return nil
}
