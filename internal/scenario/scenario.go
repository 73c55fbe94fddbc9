// Package scenario runs declarative programs on virtual threads.
//
// A scenario is a set of named procedures, each a list of operations. The
// root procedure runs on a thread (or a cluster, when the scenario spawns
// children) that is ticked by Runner.Run until it finishes.
package scenario

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Scenario is a program of procedures driven one tick at a time.
type Scenario struct {
	Name            string          `yaml:"name" toml:"name"`
	Root            string          `yaml:"root" toml:"root"`
	Cluster         bool            `yaml:"cluster" toml:"cluster"`
	WaitForChildren *bool           `yaml:"wait_for_children" toml:"wait_for_children"`
	MaxTicks        int             `yaml:"max_ticks" toml:"max_ticks"`
	Interval        time.Duration   `yaml:"interval" toml:"interval"`
	Procs           map[string][]Op `yaml:"procs" toml:"procs"`
}

// Op is a single operation of a procedure. Exactly one field is set.
type Op struct {
	// Wait suspends the procedure for the given number of ticks.
	Wait *int `yaml:"wait,omitempty" toml:"wait,omitempty"`
	// Log emits a log event.
	Log string `yaml:"log,omitempty" toml:"log,omitempty"`
	// Call runs a procedure to completion as a nested frame.
	Call string `yaml:"call,omitempty" toml:"call,omitempty"`
	// Spawn adds a child thread running a procedure to the root cluster.
	Spawn string `yaml:"spawn,omitempty" toml:"spawn,omitempty"`
	// Fail panics with the given message.
	Fail string `yaml:"fail,omitempty" toml:"fail,omitempty"`
	// Background sets or clears the background marker of the running thread.
	Background *bool `yaml:"background,omitempty" toml:"background,omitempty"`
}

// Kind returns the name of the operation, or "" when no field is set.
func (op Op) Kind() string {
	kinds := op.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (op Op) kinds() []string {
	var kinds []string
	if op.Wait != nil {
		kinds = append(kinds, "wait")
	}
	if op.Log != "" {
		kinds = append(kinds, "log")
	}
	if op.Call != "" {
		kinds = append(kinds, "call")
	}
	if op.Spawn != "" {
		kinds = append(kinds, "spawn")
	}
	if op.Fail != "" {
		kinds = append(kinds, "fail")
	}
	if op.Background != nil {
		kinds = append(kinds, "background")
	}
	return kinds
}

// WaitsForChildren reports whether a cluster root waits for its children.
func (s *Scenario) WaitsForChildren() bool {
	return s.WaitForChildren == nil || *s.WaitForChildren
}

// ErrInvalid is matched by all errors returned by Validate.
var ErrInvalid = errors.New("invalid scenario")

// Validate checks that the root and every procedure referenced by an
// operation exist, that each operation has exactly one kind, and that
// children are only spawned by cluster scenarios.
func (s *Scenario) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w %q: %s", ErrInvalid, s.Name, fmt.Sprintf(format, args...)))
	}

	if s.MaxTicks < 0 {
		invalid("max_ticks must not be negative")
	}
	if s.Interval < 0 {
		invalid("interval must not be negative")
	}
	if _, ok := s.Procs[s.Root]; !ok {
		invalid("root procedure %q is not defined", s.Root)
	}

	names := make([]string, 0, len(s.Procs))
	for name := range s.Procs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for i, op := range s.Procs[name] {
			kinds := op.kinds()
			if len(kinds) != 1 {
				invalid("%s[%d]: operation must have exactly one kind, got %v", name, i, kinds)
				continue
			}
			switch kinds[0] {
			case "wait":
				if *op.Wait < 0 {
					invalid("%s[%d]: wait must not be negative", name, i)
				}
			case "call", "spawn":
				target := op.Call + op.Spawn
				if _, ok := s.Procs[target]; !ok {
					invalid("%s[%d]: procedure %q is not defined", name, i, target)
				}
				if kinds[0] == "spawn" && !s.Cluster {
					invalid("%s[%d]: spawn requires a cluster root", name, i)
				}
			}
		}
	}
	return errors.Join(errs...)
}
