package pages

import (
	"errors"
	"fmt"
	"time"
)

// ErrNavigation matches every navigation failure, including
// NavigationTimeoutError.
var ErrNavigation = errors.New("navigation failed")

// NavigationTimeoutError reports a page that never showed its load marker.
// URL is the requested address, PageURL the last one the page reported.
type NavigationTimeoutError struct {
	URL     string
	PageURL string
	Marker  string
	Timeout time.Duration
	Err     error
}

func (e *NavigationTimeoutError) Error() string {
	msg := fmt.Sprintf("navigation to %s timed out after %s waiting for %q", e.URL, e.Timeout, e.Marker)
	if e.PageURL != "" {
		msg += " (page at " + e.PageURL + ")"
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *NavigationTimeoutError) Unwrap() error { return e.Err }

func (e *NavigationTimeoutError) Is(target error) bool { return target == ErrNavigation }

// ElementNotFoundError reports a selector (and index) that resolved to no
// element.
type ElementNotFoundError struct {
	Selector string
	Index    int
	Err      error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s at index %d: %v", e.Selector, e.Index, e.Err)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }

// StateSyncError reports a checkbox whose checked property and checked
// attribute disagree. It signals a regression in the page under test and is
// never retried.
type StateSyncError struct {
	Index     int
	Property  bool
	Attribute bool
}

func (e *StateSyncError) Error() string {
	return fmt.Sprintf("checkbox %d out of sync: property checked=%t, attribute present=%t", e.Index, e.Property, e.Attribute)
}

// IsStateSync reports whether err carries a StateSyncError.
func IsStateSync(err error) bool {
	var se *StateSyncError
	return errors.As(err, &se)
}
