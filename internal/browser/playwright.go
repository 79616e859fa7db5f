package browser

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

type pwBrowser struct {
	engine  Engine
	browser playwright.Browser
	log     logrus.FieldLogger
}

func (b *pwBrowser) Engine() Engine { return b.engine }

func (b *pwBrowser) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}
	if opts.VideoDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{Dir: opts.VideoDir}
	}
	bc, err := b.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("could not create context: %w", err)
	}
	if opts.TracePath != "" {
		if err := bc.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		}); err != nil {
			_ = bc.Close()
			return nil, fmt.Errorf("could not start tracing: %w", err)
		}
	}
	page, err := bc.NewPage()
	if err != nil {
		_ = bc.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}

	p := &pwPage{
		bc:        bc,
		page:      page,
		action:    orDefault(opts.ActionTimeout, 10*time.Second),
		nav:       orDefault(opts.NavigationTimeout, 30*time.Second),
		tracePath: opts.TracePath,
		log:       b.log,
	}
	page.SetDefaultTimeout(ms(p.action))
	page.SetDefaultNavigationTimeout(ms(p.nav))
	page.OnFrameNavigated(func(f playwright.Frame) {
		if f == page.MainFrame() {
			p.navs.Add(1)
		}
	})
	return p, nil
}

func (b *pwBrowser) Close() error {
	return b.browser.Close()
}

type pwPage struct {
	bc        playwright.BrowserContext
	page      playwright.Page
	action    time.Duration
	nav       time.Duration
	tracePath string
	navs      atomic.Int64
	log       logrus.FieldLogger
}

func (p *pwPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeoutFor(ctx, p.nav),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return pwErr(err)
}

func (p *pwPage) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *pwPage) WaitVisible(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pwErr(p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeoutFor(ctx, p.action),
	}))
}

func (p *pwPage) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.page.Locator(selector).Count()
	return n, pwErr(err)
}

func (p *pwPage) Text(ctx context.Context, selector string) (string, error) {
	return p.Element(selector, 0).Text(ctx)
}

func (p *pwPage) Element(selector string, nth int) Element {
	return &pwElement{page: p, selector: selector, nth: nth, loc: p.page.Locator(selector).Nth(nth)}
}

func (p *pwPage) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pwErr(p.page.Keyboard().Press(key))
}

func (p *pwPage) FocusedIndex(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err := p.page.Evaluate(focusedIndexScript, selector)
	if err != nil {
		return 0, pwErr(err)
	}
	n, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("unexpected focused index %T", v)
	}
	return int(n), nil
}

func (p *pwPage) ClickText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := p.page.Evaluate(textCenterScript, text)
	if err != nil {
		return pwErr(err)
	}
	m, ok := v.(map[string]interface{})
	if !ok || m == nil {
		return fmt.Errorf("%w: text %q", ErrNotFound, text)
	}
	x, _ := toFloat(m["x"])
	y, _ := toFloat(m["y"])
	return pwErr(p.page.Mouse().Click(x, y))
}

func (p *pwPage) Navigations() int {
	return int(p.navs.Load())
}

func (p *pwPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return pwErr(err)
}

func (p *pwPage) Close(ctx context.Context) (Artifacts, error) {
	var (
		art  Artifacts
		errs []error
	)
	if p.tracePath != "" {
		if err := p.bc.Tracing().Stop(p.tracePath); err != nil {
			errs = append(errs, fmt.Errorf("stop tracing: %w", err))
		} else {
			art.Trace = p.tracePath
		}
	}
	if v := p.page.Video(); v != nil {
		if path, err := v.Path(); err == nil {
			art.Video = path
		}
	}
	if err := p.page.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, fmt.Errorf("close page: %w", err))
	}
	if err := p.bc.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, fmt.Errorf("close context: %w", err))
	}
	return art, errors.Join(errs...)
}

type pwElement struct {
	page     *pwPage
	selector string
	nth      int
	loc      playwright.Locator
}

func (e *pwElement) Selector() string { return e.selector }
func (e *pwElement) Index() int       { return e.nth }

func (e *pwElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.resolveErr(e.loc.Click(playwright.LocatorClickOptions{Timeout: timeoutFor(ctx, e.page.action)}))
}

func (e *pwElement) Focus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.resolveErr(e.loc.Focus(playwright.LocatorFocusOptions{Timeout: timeoutFor(ctx, e.page.action)}))
}

func (e *pwElement) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.resolveErr(e.loc.Press(key, playwright.LocatorPressOptions{Timeout: timeoutFor(ctx, e.page.action)}))
}

func (e *pwElement) Property(ctx context.Context, name string) (bool, error) {
	return e.evalBool(ctx, `(el, name) => !!el[name]`, name)
}

func (e *pwElement) HasAttribute(ctx context.Context, name string) (bool, error) {
	return e.evalBool(ctx, `(el, name) => el.hasAttribute(name)`, name)
}

func (e *pwElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.loc.TextContent(playwright.LocatorTextContentOptions{Timeout: timeoutFor(ctx, e.page.action)})
	return s, e.resolveErr(err)
}

func (e *pwElement) evalBool(ctx context.Context, fn, arg string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := e.loc.Evaluate(fn, arg, playwright.LocatorEvaluateOptions{Timeout: timeoutFor(ctx, e.page.action)})
	if err != nil {
		return false, e.resolveErr(err)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %T from %s", v, fn)
	}
	return b, nil
}

// resolveErr turns a timeout on an element that never appeared into
// ErrNotFound; playwright itself only reports the timeout.
func (e *pwElement) resolveErr(err error) error {
	err = pwErr(err)
	if err == nil || !errors.Is(err, ErrTimeout) {
		return err
	}
	if n, cerr := e.loc.Count(); cerr == nil && n == 0 {
		return fmt.Errorf("%w: %s >> nth=%d: %v", ErrNotFound, e.selector, e.nth, err)
	}
	return err
}

func pwErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, playwright.ErrTargetClosed):
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

// timeoutFor returns the playwright timeout in milliseconds: def, shortened
// to whatever remains of the context deadline.
func timeoutFor(ctx context.Context, def time.Duration) *float64 {
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < def {
			if rem < time.Millisecond {
				rem = time.Millisecond
			}
			def = rem
		}
	}
	return playwright.Float(ms(def))
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// toFloat accepts the number shapes playwright hands back from Evaluate.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
