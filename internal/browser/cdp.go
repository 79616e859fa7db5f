package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"
)

type cdpBrowser struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	log           logrus.FieldLogger
}

func launchCDP(ctx context.Context, opts LaunchOptions, log logrus.FieldLogger) (Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight))
	}
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	// The browser outlives the launching call, so it hangs off Background.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	start, cancelStart := context.WithCancel(browserCtx)
	defer cancelStart()
	stop := context.AfterFunc(ctx, cancelStart)
	defer stop()
	if err := chromedp.Run(start); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("could not launch cdp browser: %w", err)
	}
	return &cdpBrowser{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		log:           log.WithField("engine", CDP),
	}, nil
}

func (b *cdpBrowser) Engine() Engine { return CDP }

func (b *cdpBrowser) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.VideoDir != "" || opts.TracePath != "" {
		b.log.Debug("Video and trace recording are not available on cdp, skipping")
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	p := &cdpPage{
		tabCtx: tabCtx,
		cancel: cancel,
		action: orDefault(opts.ActionTimeout, 10*time.Second),
		nav:    orDefault(opts.NavigationTimeout, 30*time.Second),
	}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*cdppage.EventFrameNavigated); ok && e.Frame.ParentID == "" {
			p.navs.Add(1)
		}
	})
	var setup []chromedp.Action
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		setup = append(setup, chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)))
	}
	if err := p.run(ctx, p.nav, setup...); err != nil {
		cancel()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	return p, nil
}

func (b *cdpBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.cancelBrowser()
	b.cancelAlloc()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type cdpPage struct {
	tabCtx context.Context
	cancel context.CancelFunc
	action time.Duration
	nav    time.Duration
	navs   atomic.Int64
	closed atomic.Bool
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (p *cdpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (p *cdpPage) Goto(ctx context.Context, url string) error {
	return p.run(ctx, p.nav, chromedp.Navigate(url))
}

func (p *cdpPage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, p.action, chromedp.Location(&u))
	return u, err
}

func (p *cdpPage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, p.action, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *cdpPage) Count(ctx context.Context, selector string) (int, error) {
	expr, err := invokeScript(`(sel) => document.querySelectorAll(sel).length`, selector)
	if err != nil {
		return 0, err
	}
	var n int
	err = p.run(ctx, p.action, chromedp.Evaluate(expr, &n))
	return n, err
}

func (p *cdpPage) Text(ctx context.Context, selector string) (string, error) {
	return p.Element(selector, 0).Text(ctx)
}

func (p *cdpPage) Element(selector string, nth int) Element {
	return &cdpElement{page: p, selector: selector, nth: nth}
}

func (p *cdpPage) Press(ctx context.Context, key string) error {
	if k, ok := strings.CutPrefix(key, "Shift+"); ok {
		return p.run(ctx, p.action, chromedp.KeyEvent(cdpKey(k), chromedp.KeyModifiers(input.ModifierShift)))
	}
	return p.run(ctx, p.action, chromedp.KeyEvent(cdpKey(key)))
}

func (p *cdpPage) FocusedIndex(ctx context.Context, selector string) (int, error) {
	expr, err := invokeScript(focusedIndexScript, selector)
	if err != nil {
		return 0, err
	}
	var n int
	err = p.run(ctx, p.action, chromedp.Evaluate(expr, &n))
	return n, err
}

func (p *cdpPage) ClickText(ctx context.Context, text string) error {
	expr, err := invokeScript(textCenterScript, text)
	if err != nil {
		return err
	}
	return p.run(ctx, p.action, chromedp.ActionFunc(func(ctx context.Context) error {
		var pt *point
		if err := chromedp.Evaluate(expr, &pt).Do(ctx); err != nil {
			return err
		}
		if pt == nil {
			return fmt.Errorf("%w: text %q", ErrNotFound, text)
		}
		return chromedp.MouseClickXY(pt.X, pt.Y).Do(ctx)
	}))
}

func (p *cdpPage) Navigations() int {
	return int(p.navs.Load())
}

func (p *cdpPage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, p.action, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (p *cdpPage) Close(ctx context.Context) (Artifacts, error) {
	if p.closed.Swap(true) {
		return Artifacts{}, nil
	}
	err := chromedp.Cancel(p.tabCtx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return Artifacts{}, err
}

type cdpElement struct {
	page     *cdpPage
	selector string
	nth      int
}

func (e *cdpElement) Selector() string { return e.selector }
func (e *cdpElement) Index() int       { return e.nth }

// node resolves the element to a DOM node without waiting for it.
func (e *cdpElement) node(ctx context.Context) (*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := chromedp.Nodes(e.selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)).Do(ctx); err != nil {
		return nil, err
	}
	if e.nth < 0 || e.nth >= len(nodes) {
		return nil, fmt.Errorf("%w: %s >> nth=%d", ErrNotFound, e.selector, e.nth)
	}
	return nodes[e.nth], nil
}

func (e *cdpElement) Click(ctx context.Context) error {
	return e.page.run(ctx, e.page.action, chromedp.ActionFunc(func(ctx context.Context) error {
		n, err := e.node(ctx)
		if err != nil {
			return err
		}
		return chromedp.MouseClickNode(n).Do(ctx)
	}))
}

func (e *cdpElement) Focus(ctx context.Context) error {
	_, err := e.eval(ctx, "focus", "")
	return err
}

func (e *cdpElement) Press(ctx context.Context, key string) error {
	if err := e.Focus(ctx); err != nil {
		return err
	}
	return e.page.Press(ctx, key)
}

func (e *cdpElement) Property(ctx context.Context, name string) (bool, error) {
	res, err := e.eval(ctx, "property", name)
	return res.Value, err
}

func (e *cdpElement) HasAttribute(ctx context.Context, name string) (bool, error) {
	res, err := e.eval(ctx, "attribute", name)
	return res.Value, err
}

func (e *cdpElement) Text(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, "text", "")
	return res.Text, err
}

func (e *cdpElement) eval(ctx context.Context, op, name string) (nthResult, error) {
	var res nthResult
	expr, err := invokeScript(nthScript, e.selector, e.nth, op, name)
	if err != nil {
		return res, err
	}
	if err := e.page.run(ctx, e.page.action, chromedp.Evaluate(expr, &res)); err != nil {
		return res, err
	}
	if !res.Found {
		return res, fmt.Errorf("%w: %s >> nth=%d", ErrNotFound, e.selector, e.nth)
	}
	return res, nil
}

// cdpKey maps playwright key names onto chromedp key strings.
func cdpKey(key string) string {
	switch key {
	case "Space":
		return " "
	case "Enter":
		return kb.Enter
	case "Tab":
		return kb.Tab
	case "Escape":
		return kb.Escape
	case "Backspace":
		return kb.Backspace
	}
	return key
}
