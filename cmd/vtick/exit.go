package main

import (
	"errors"
	"fmt"
)

// Exit codes of the vtick command.
const (
	ExitSuccess      = 0 // every scenario finished
	ExitFailure      = 1 // a scenario faulted or ran out of ticks
	ExitCommandError = 2 // bad flags or unreadable scenario files
)

// ExitError is an error carrying the exit code of the command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func wrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// exitCode returns the exit code for err; errors that are not an ExitError
// are command errors, like the ones cobra returns for bad flags.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}
