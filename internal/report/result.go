// Package report collects scenario results and renders them as a JSON
// document, an HTML page, a prometheus textfile and a console summary.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/pagecheck/pagecheck/internal/browser"
	"github.com/pagecheck/pagecheck/internal/pages"
	"github.com/pagecheck/pagecheck/internal/suite"
)

// Status is the final outcome of one scenario on one engine.
type Status string

const (
	Passed  Status = "passed"
	Failed  Status = "failed"
	Flaky   Status = "flaky"
	Skipped Status = "skipped"
)

// ErrorKind names the class of the error that failed an attempt.
type ErrorKind string

const (
	KindStateSync         ErrorKind = "state_sync"
	KindNavigationTimeout ErrorKind = "navigation_timeout"
	KindNavigation        ErrorKind = "navigation"
	KindElementNotFound   ErrorKind = "element_not_found"
	KindAssertion         ErrorKind = "assertion"
	KindTimeout           ErrorKind = "timeout"
	KindCancelled         ErrorKind = "cancelled"
	KindError             ErrorKind = "error"
)

// Classify maps err onto an ErrorKind. nil has no kind.
func Classify(err error) ErrorKind {
	var (
		navTimeout *pages.NavigationTimeoutError
		notFound   *pages.ElementNotFoundError
		assertion  *suite.AssertionError
	)
	switch {
	case err == nil:
		return ""
	case pages.IsStateSync(err):
		return KindStateSync
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &navTimeout):
		return KindNavigationTimeout
	case errors.Is(err, pages.ErrNavigation):
		return KindNavigation
	case errors.As(err, &notFound):
		return KindElementNotFound
	case errors.As(err, &assertion):
		return KindAssertion
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, browser.ErrTimeout):
		return KindTimeout
	}
	return KindError
}

// Artifacts are the files kept for a result.
type Artifacts struct {
	Screenshot string `json:"screenshot,omitempty"`
	Video      string `json:"video,omitempty"`
	Trace      string `json:"trace,omitempty"`
}

// Empty reports whether no artifact was kept.
func (a Artifacts) Empty() bool {
	return a == Artifacts{}
}

// Result is one scenario on one engine after all its attempts.
type Result struct {
	Scenario  string        `json:"scenario"`
	File      string        `json:"file"`
	Source    string        `json:"source,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Engine    string        `json:"engine"`
	Status    Status        `json:"status"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Artifacts Artifacts     `json:"artifacts"`
}

// ID matches suite.Scenario.ID.
func (r Result) ID() string {
	return r.File + " › " + r.Scenario
}
