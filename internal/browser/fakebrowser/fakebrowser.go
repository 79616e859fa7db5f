// Package fakebrowser is an in-memory model of the checkbox reference page
// that satisfies the browser contract, for tests that must not start a
// real browser.
package fakebrowser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pagecheck/pagecheck/internal/browser"
)

// Selectors the model answers to. They mirror the reference markup.
const (
	HeadingSelector  = "h3"
	FormSelector     = "form#checkboxes"
	CheckboxSelector = "form#checkboxes input[type=checkbox]"
)

// Options shape the simulated page.
type Options struct {
	Engine browser.Engine
	// Initial holds the checked state of each checkbox at load time.
	// Defaults to [false, true].
	Initial []bool
	// BrokenSync stops the page script from mirroring the property into
	// the attribute, which is what a real regression looks like.
	BrokenSync bool
	// Heading is the h3 text. Empty means "Checkboxes"; NoHeading removes it.
	Heading   string
	NoHeading bool
	// GotoErr is returned from every Goto.
	GotoErr error
	// NavigateOnEnter makes Enter on a focused checkbox submit the form.
	NavigateOnEnter bool
	// ClickTextToggles wraps the adjacent text in a label, so clicking it
	// toggles the checkbox.
	ClickTextToggles bool
	// FailPages makes the first n NewPage calls return a page whose Goto
	// fails, to exercise retries.
	FailPages int
}

// Browser hands out independent simulated pages.
type Browser struct {
	opts   Options
	mu     sync.Mutex
	pages  []*Page
	closed bool
	fails  atomic.Int64
}

// New returns a simulated browser.
func New(opts Options) *Browser {
	if opts.Engine == "" {
		opts.Engine = browser.Chromium
	}
	if opts.Initial == nil {
		opts.Initial = []bool{false, true}
	}
	if opts.Heading == "" {
		opts.Heading = "Checkboxes"
	}
	b := &Browser{opts: opts}
	b.fails.Store(int64(opts.FailPages))
	return b
}

func (b *Browser) Engine() browser.Engine { return b.opts.Engine }

func (b *Browser) NewPage(ctx context.Context, opts browser.PageOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, browser.ErrClosed
	}
	p := &Page{opts: b.opts, url: "about:blank", focus: -1, pageOpts: opts}
	if b.fails.Add(-1) >= 0 {
		p.opts.GotoErr = fmt.Errorf("%w: simulated flaky load", browser.ErrTimeout)
	}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Pages returns every page opened so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

// Page is one simulated tab.
type Page struct {
	opts     Options
	pageOpts browser.PageOptions

	mu        sync.Mutex
	url       string
	loaded    bool
	property  []bool
	attribute []bool
	focus     int
	navs      int
	closed    bool
	clicks    int
}

func (p *Page) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return browser.ErrClosed
	}
	return nil
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	if p.opts.GotoErr != nil {
		return p.opts.GotoErr
	}
	p.load(url)
	return nil
}

func (p *Page) load(url string) {
	p.url = url
	p.loaded = true
	p.property = append([]bool(nil), p.opts.Initial...)
	p.attribute = append([]bool(nil), p.opts.Initial...)
	p.focus = -1
	p.navs++
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := p.lock(ctx); err != nil {
		return "", err
	}
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	if p.count(selector) == 0 {
		return fmt.Errorf("%w: waiting for %s", browser.ErrTimeout, selector)
	}
	return nil
}

func (p *Page) count(selector string) int {
	if !p.loaded {
		return 0
	}
	switch selector {
	case HeadingSelector:
		if p.opts.NoHeading {
			return 0
		}
		return 1
	case FormSelector:
		return 1
	case CheckboxSelector:
		return len(p.property)
	}
	return 0
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	if err := p.lock(ctx); err != nil {
		return 0, err
	}
	defer p.mu.Unlock()
	return p.count(selector), nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	return p.Element(selector, 0).Text(ctx)
}

func (p *Page) Element(selector string, nth int) browser.Element {
	return &Element{page: p, selector: selector, nth: nth}
}

func (p *Page) Press(ctx context.Context, key string) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.press(key)
	return nil
}

func (p *Page) press(key string) {
	switch key {
	case "Tab":
		if p.focus+1 < len(p.property) {
			p.focus++
		} else {
			p.focus = -1
		}
	case "Shift+Tab":
		switch {
		case p.focus > 0:
			p.focus--
		case p.focus < 0:
			p.focus = len(p.property) - 1
		default:
			p.focus = -1
		}
	case "Space":
		if p.focus >= 0 {
			p.click(p.focus)
		}
	case "Enter":
		if p.focus >= 0 && p.opts.NavigateOnEnter {
			p.load(p.url + "?")
		}
	}
}

// click mimics a user click: the browser flips the property, then the
// page script mirrors it into the attribute.
func (p *Page) click(i int) {
	p.clicks++
	p.property[i] = !p.property[i]
	if !p.opts.BrokenSync {
		p.attribute[i] = p.property[i]
	}
}

func (p *Page) FocusedIndex(ctx context.Context, selector string) (int, error) {
	if err := p.lock(ctx); err != nil {
		return 0, err
	}
	defer p.mu.Unlock()
	if selector != CheckboxSelector {
		return -1, nil
	}
	return p.focus, nil
}

func (p *Page) ClickText(ctx context.Context, text string) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	for i := range p.property {
		if text == fmt.Sprintf("checkbox %d", i+1) {
			if p.opts.ClickTextToggles {
				p.click(i)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: text %q", browser.ErrNotFound, text)
}

func (p *Page) Navigations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navs
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	return os.WriteFile(path, []byte("fake screenshot of "+p.url), 0o644)
}

func (p *Page) Close(ctx context.Context) (browser.Artifacts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var art browser.Artifacts
	if p.pageOpts.TracePath != "" {
		art.Trace = p.pageOpts.TracePath
	}
	if p.pageOpts.VideoDir != "" {
		art.Video = strings.TrimSuffix(p.pageOpts.VideoDir, "/") + "/page.webm"
	}
	return art, nil
}

// Closed reports whether Close ran.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Clicks counts clicks delivered to checkboxes.
func (p *Page) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

// Desync forces the property of checkbox i away from its attribute, as if
// the page script had missed an event.
func (p *Page) Desync(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.property[i] = !p.attribute[i]
}

// Element is a lazy handle into the simulated DOM.
type Element struct {
	page     *Page
	selector string
	nth      int
}

func (e *Element) Selector() string { return e.selector }
func (e *Element) Index() int       { return e.nth }

// with resolves the element under the page lock and runs fn on it.
func (e *Element) with(ctx context.Context, fn func(p *Page) error) error {
	if err := e.page.lock(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	if e.nth < 0 || e.nth >= e.page.count(e.selector) {
		return fmt.Errorf("%w: %s >> nth=%d", browser.ErrNotFound, e.selector, e.nth)
	}
	return fn(e.page)
}

func (e *Element) checkbox() bool { return e.selector == CheckboxSelector }

func (e *Element) Click(ctx context.Context) error {
	return e.with(ctx, func(p *Page) error {
		if e.checkbox() {
			p.click(e.nth)
			p.focus = e.nth
		}
		return nil
	})
}

func (e *Element) Focus(ctx context.Context) error {
	return e.with(ctx, func(p *Page) error {
		if e.checkbox() {
			p.focus = e.nth
		}
		return nil
	})
}

func (e *Element) Press(ctx context.Context, key string) error {
	return e.with(ctx, func(p *Page) error {
		if e.checkbox() {
			p.focus = e.nth
		}
		p.press(key)
		return nil
	})
}

func (e *Element) Property(ctx context.Context, name string) (bool, error) {
	var v bool
	err := e.with(ctx, func(p *Page) error {
		if e.checkbox() && name == "checked" {
			v = p.property[e.nth]
		}
		return nil
	})
	return v, err
}

func (e *Element) HasAttribute(ctx context.Context, name string) (bool, error) {
	var v bool
	err := e.with(ctx, func(p *Page) error {
		if e.checkbox() && name == "checked" {
			v = p.attribute[e.nth]
		}
		return nil
	})
	return v, err
}

func (e *Element) Text(ctx context.Context) (string, error) {
	var s string
	err := e.with(ctx, func(p *Page) error {
		if e.selector == HeadingSelector {
			s = p.opts.Heading
		}
		return nil
	})
	return s, err
}
