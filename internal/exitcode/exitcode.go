// Package exitcode attaches process exit codes and user hints to errors so
// the CLI can decide how to exit once an error reaches the top.
package exitcode

import (
	"errors"
	"strings"
)

// Code is a process exit status.
type Code uint8

// Exit codes used by pagecheck.
const (
	OK              Code = 0
	ScenariosFailed Code = 1
	InvalidConfig   Code = 2
	BrowserLaunch   Code = 3
	ReportWrite     Code = 4
)

// Error annotates Err with an exit code, a hint, or both. A zero Code means
// the error leaves the code to whatever it wraps.
type Error struct {
	Err  error
	Code Code
	Hint string
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches code to err. The first code set on a chain wins, so
// wrapping an error that already carries one changes nothing.
func Wrap(err error, code Code) error {
	if err == nil {
		return nil
	}
	if _, ok := find(err, func(e *Error) bool { return e.Code != OK }); ok {
		return err
	}
	return &Error{Err: err, Code: code}
}

// WithHint attaches a suggestion for the user to err.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, Hint: hint}
}

// Of returns the exit code for err. A nil error is OK; an error without a
// code is treated as a scenario failure.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if e, ok := find(err, func(e *Error) bool { return e.Code != OK }); ok {
		return e.Code
	}
	return ScenariosFailed
}

// HintOf joins every hint on err's chain, outermost first.
func HintOf(err error) string {
	var hints []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ee, ok := e.(*Error); ok && ee.Hint != "" {
			hints = append(hints, ee.Hint)
		}
	}
	return strings.Join(hints, "; ")
}

// find walks err's chain for the first *Error accepted by match.
func find(err error, match func(*Error) bool) (*Error, bool) {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return nil, false
		}
		if match(e) {
			return e, true
		}
		err = e.Err
	}
	return nil, false
}
