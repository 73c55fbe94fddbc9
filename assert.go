package vthread

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrContractViolation matches every *ContractViolation with errors.Is.
var ErrContractViolation = errors.New("vthread: contract violation")

// ContractViolation describes a programming error detected by a thread: an
// operation called in the wrong state, a frame pushed after it started, a
// state change while the state is locked, or diagnostic stacks out of sync.
type ContractViolation struct {
	// Thread is the name of the thread that detected the violation.
	Thread string
	// Op is the thread operation that was attempted.
	Op string
	// Reason explains what precondition did not hold.
	Reason string
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("vthread: %s %q: %s", v.Op, v.Thread, v.Reason)
}

func (v *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation
}

// Asserter receives the contract violations detected by threads.
type Asserter interface {
	Violation(v *ContractViolation)
}

// PanicAsserter halts by panicking with the violation. It is the default.
type PanicAsserter struct{}

func (PanicAsserter) Violation(v *ContractViolation) { panic(v) }

// LogAsserter logs violations at error level and lets the thread continue.
// A nil Logger logs to slog.Default().
type LogAsserter struct {
	Logger *slog.Logger
}

func (a LogAsserter) Violation(v *ContractViolation) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("contract violation", "thread", v.Thread, "op", v.Op, "reason", v.Reason)
}

// check reports a violation to the runtime asserter unless ok. The reason is
// only formatted when the check fails.
func (t *Thread) check(ok bool, op, reason string, args ...any) bool {
	if !ok {
		if len(args) > 0 {
			reason = fmt.Sprintf(reason, args...)
		}
		t.rt.asserter.Violation(&ContractViolation{Thread: t.name, Op: op, Reason: reason})
	}
	return ok
}
