// Package pages holds the page objects scenarios drive. Page objects compose
// Base for the capabilities every page shares and add typed operations for
// their own widgets.
package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pagecheck/pagecheck/internal/browser"
)

// Timeouts bound the waits a page object performs itself.
type Timeouts struct {
	// Navigation bounds Goto plus the wait for the load marker.
	Navigation time.Duration
	// Observation is how long PressEnter watches for a navigation.
	Observation time.Duration
}

// Base is the shared capability set: navigate relative to the base URL,
// wait for the load marker, read the title.
type Base struct {
	page     browser.Page
	baseURL  string
	timeouts Timeouts
}

// NewBase wraps page. baseURL has no trailing slash requirement.
func NewBase(page browser.Page, baseURL string, timeouts Timeouts) *Base {
	if timeouts.Navigation <= 0 {
		timeouts.Navigation = 30 * time.Second
	}
	if timeouts.Observation <= 0 {
		timeouts.Observation = 500 * time.Millisecond
	}
	return &Base{page: page, baseURL: strings.TrimRight(baseURL, "/"), timeouts: timeouts}
}

// Page exposes the underlying browser page.
func (b *Base) Page() browser.Page { return b.page }

// URLFor joins path onto the base URL.
func (b *Base) URLFor(path string) string {
	if path == "" {
		return b.baseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return b.baseURL + path
}

// NavigateTo loads path and waits for marker to become visible.
func (b *Base) NavigateTo(ctx context.Context, path, marker string) error {
	url := b.URLFor(path)
	ctx, cancel := context.WithTimeout(ctx, b.timeouts.Navigation)
	defer cancel()

	if err := b.page.Goto(ctx, url); err != nil {
		if errors.Is(err, browser.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return &NavigationTimeoutError{URL: url, PageURL: b.lastURL(ctx), Marker: marker, Timeout: b.timeouts.Navigation, Err: err}
		}
		if strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
			return fmt.Errorf("%w: redirect loop navigating to %s (check the base URL): %w", ErrNavigation, url, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}
	return b.WaitForLoad(ctx, url, marker)
}

// WaitForLoad blocks until marker is visible.
func (b *Base) WaitForLoad(ctx context.Context, url, marker string) error {
	if err := b.page.WaitVisible(ctx, marker); err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return &NavigationTimeoutError{URL: url, PageURL: b.lastURL(ctx), Marker: marker, Timeout: b.timeouts.Navigation, Err: err}
	}
	return nil
}

// lastURLTimeout bounds the URL read after a failed navigation.
const lastURLTimeout = 2 * time.Second

// lastURL returns where the page actually is, or "" when the driver cannot
// tell. It runs after ctx may already have expired.
func (b *Base) lastURL(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lastURLTimeout)
	defer cancel()
	u, err := b.page.URL(ctx)
	if err != nil {
		return ""
	}
	return u
}

// Title returns the trimmed text of the element matched by selector.
func (b *Base) Title(ctx context.Context, selector string) (string, error) {
	s, err := b.page.Text(ctx, selector)
	if err != nil {
		return "", elementErr(selector, 0, err)
	}
	return strings.TrimSpace(s), nil
}

// URL returns the current page URL.
func (b *Base) URL(ctx context.Context) (string, error) {
	return b.page.URL(ctx)
}

// elementErr maps a driver lookup failure onto ElementNotFoundError.
func elementErr(selector string, index int, err error) error {
	if errors.Is(err, browser.ErrNotFound) {
		return &ElementNotFoundError{Selector: selector, Index: index, Err: err}
	}
	return err
}
