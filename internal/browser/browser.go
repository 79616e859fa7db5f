// Package browser defines the engine-neutral automation contract used by the
// page objects, with a playwright-go backend for chromium, firefox and webkit
// and a chromedp backend speaking the Chrome DevTools Protocol directly.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Engine identifies a browser engine a scenario can run under.
type Engine string

const (
	Chromium Engine = "chromium"
	Firefox  Engine = "firefox"
	WebKit   Engine = "webkit"
	// CDP drives a local Chrome through chromedp instead of playwright.
	CDP Engine = "cdp"
)

// Engines lists every supported engine in display order.
var Engines = []Engine{Chromium, Firefox, WebKit, CDP}

// ParseEngine resolves an engine name, ignoring case and surrounding space.
func ParseEngine(name string) (Engine, error) {
	n := Engine(strings.ToLower(strings.TrimSpace(name)))
	for _, e := range Engines {
		if e == n {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown browser engine %q (want one of %s)", name, strings.Join(EngineNames(), ", "))
}

// EngineNames returns the engine names as strings.
func EngineNames() []string {
	names := make([]string, len(Engines))
	for i, e := range Engines {
		names[i] = string(e)
	}
	return names
}

// Playwright reports whether the engine is served by the playwright driver.
func (e Engine) Playwright() bool {
	return e == Chromium || e == Firefox || e == WebKit
}

func (e Engine) String() string { return string(e) }

var (
	// ErrTimeout is returned when a driver operation exceeds its deadline.
	ErrTimeout = errors.New("browser: timeout")
	// ErrNotFound is returned when a selector does not resolve to an element.
	ErrNotFound = errors.New("browser: element not found")
	// ErrClosed is returned by operations on a closed page or browser.
	ErrClosed = errors.New("browser: closed")
)

// Browser is a launched engine able to open isolated pages.
type Browser interface {
	Engine() Engine
	// NewPage opens a fresh browser context with a single page in it.
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// PageOptions configure a new browser context.
type PageOptions struct {
	ViewportWidth  int
	ViewportHeight int
	// ActionTimeout bounds element lookups and input actions.
	ActionTimeout time.Duration
	// NavigationTimeout bounds Goto.
	NavigationTimeout time.Duration
	// VideoDir enables video recording into the directory when set.
	VideoDir string
	// TracePath enables tracing; the trace is written on Close.
	TracePath string
}

// Page is a single tab inside its own browser context.
type Page interface {
	Goto(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	// WaitVisible blocks until selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error
	Count(ctx context.Context, selector string) (int, error)
	// Text returns the text content of the first element matching selector.
	Text(ctx context.Context, selector string) (string, error)
	// Element returns a lazy handle for the nth (0-based) match of selector.
	// Nothing is resolved until an operation runs on the handle.
	Element(selector string, nth int) Element
	// Press sends a key to whatever currently has focus.
	Press(ctx context.Context, key string) error
	// FocusedIndex returns the index of the focused element among the
	// matches of selector, or -1.
	FocusedIndex(ctx context.Context, selector string) (int, error)
	// ClickText clicks the centre of the first text node whose trimmed
	// content equals text.
	ClickText(ctx context.Context, text string) error
	// Navigations counts main frame navigations since the page was created.
	Navigations() int
	Screenshot(ctx context.Context, path string) error
	// Close closes the page and its context, flushing any trace or video.
	// It returns the paths of the artifacts written.
	Close(ctx context.Context) (Artifacts, error)
}

// Element is a lazily resolved reference to one DOM element.
type Element interface {
	Selector() string
	Index() int
	Click(ctx context.Context) error
	Focus(ctx context.Context) error
	Press(ctx context.Context, key string) error
	// Property reads a boolean DOM property such as "checked".
	Property(ctx context.Context, name string) (bool, error)
	// HasAttribute reports whether the serialized HTML attribute is present.
	HasAttribute(ctx context.Context, name string) (bool, error)
	Text(ctx context.Context) (string, error)
}

// Artifacts lists files produced while a page was open.
type Artifacts struct {
	Video string `json:"video,omitempty"`
	Trace string `json:"trace,omitempty"`
}
