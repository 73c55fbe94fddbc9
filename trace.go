package vthread

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// CallSite is the location a frame called into a nested frame from.
type CallSite struct {
	Function string
	File     string
	Line     int
}

func callerSite(skip int) CallSite {
	var pcs [1]uintptr
	if runtime.Callers(skip+1, pcs[:]) == 0 {
		return CallSite{}
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	return CallSite{Function: frame.Function, File: frame.File, Line: frame.Line}
}

// Symbolizer maps the raw name of a function found in a trace to the name of
// the function that declared it.
type Symbolizer func(function string) string

var closureSuffix = regexp.MustCompile(`\.(func|gowrap|deferwrap)\d+$|\.\d+$`)

// CollapseClosure strips the suffixes the Go compiler appends to the names of
// closures, so that the body of a coroutine declared as a function literal is
// reported as the function it was declared in:
//
//	example.com/app.(*Loader).Load.func1.2 => example.com/app.(*Loader).Load
func CollapseClosure(function string) string {
	for {
		loc := closureSuffix.FindStringIndex(function)
		if loc == nil {
			return function
		}
		function = function[:loc[0]]
	}
}

func (rt *Runtime) describe(caller, callee Frame) string {
	if s, ok := caller.(interface{ CallSite() CallSite }); ok {
		if site := s.CallSite(); site.Function != "" {
			return fmt.Sprintf("%s(...)\n\t%s:%d", rt.symbolize(site.Function), site.File, site.Line)
		}
	}
	return fmt.Sprintf("%T.Next(...)\n\tcalling %T", caller, callee)
}

var enginePackage = reflect.TypeFor[Thread]().PkgPath()

func isEngineFunction(function string) bool {
	return function == "panic" ||
		strings.HasPrefix(function, "runtime.") ||
		strings.HasPrefix(function, "runtime/debug.") ||
		strings.HasPrefix(function, enginePackage+".") ||
		strings.HasPrefix(function, enginePackage+"/internal/gls.")
}

// RewriteStack rewrites a trace in the format of runtime/debug.Stack into the
// logical call chain of a virtual thread.
//
// The goroutine header and the frames of the runtime and of this package are
// dropped, and function names are passed through symbolize (CollapseClosure
// when nil). The calls, innermost first, are appended after the native frames:
// they stand for the frames suspended on the thread's stack, which are not on
// the goroutine stack when the fault happens.
func RewriteStack(native []byte, symbolize Symbolizer, calls []string) string {
	if symbolize == nil {
		symbolize = CollapseClosure
	}

	var b strings.Builder
	lines := strings.Split(strings.TrimRight(string(native), "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" || strings.HasPrefix(line, "goroutine ") || strings.HasPrefix(line, "\t") {
			continue
		}
		var location string
		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "\t") {
			location = lines[i+1]
			i++
		}

		function, rest, createdBy := splitTraceLine(line)
		if isEngineFunction(function) {
			continue
		}
		if createdBy {
			b.WriteString("created by ")
		}
		b.WriteString(symbolize(function))
		b.WriteString(rest)
		b.WriteByte('\n')
		if location != "" {
			b.WriteString(location)
			b.WriteByte('\n')
		}
	}

	for _, call := range calls {
		b.WriteString(call)
		b.WriteByte('\n')
	}
	return b.String()
}

func splitTraceLine(line string) (function, rest string, createdBy bool) {
	if s, ok := strings.CutPrefix(line, "created by "); ok {
		if i := strings.IndexByte(s, ' '); i >= 0 {
			return s[:i], s[i:], true
		}
		return s, "", true
	}
	if i := strings.LastIndexByte(line, '('); i > 0 {
		return line[:i], line[i:], false
	}
	return line, "", false
}
