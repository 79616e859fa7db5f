package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// LaunchOptions configure every browser a Launcher starts.
type LaunchOptions struct {
	Headless bool
	SlowMo   time.Duration
	// Install downloads the playwright driver and the requested browsers
	// before the driver starts. PLAYWRIGHT_PREINSTALLED=1 disables it.
	Install bool
	// ChromePath overrides the Chrome binary used by the cdp engine.
	ChromePath     string
	ViewportWidth  int
	ViewportHeight int
	Logger         logrus.FieldLogger
}

// Launcher starts browsers and owns the playwright driver process.
type Launcher struct {
	opts LaunchOptions
	log  logrus.FieldLogger

	mu        sync.Mutex
	pw        *playwright.Playwright
	installed map[Engine]bool
	browsers  []Browser
}

// NewLauncher creates a launcher. No process is started until Launch.
func NewLauncher(opts LaunchOptions) *Launcher {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Launcher{opts: opts, log: log.WithField("component", "launcher")}
}

// Launch starts a browser for engine. Browsers are closed by Close.
func (l *Launcher) Launch(ctx context.Context, engine Engine) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		b   Browser
		err error
	)
	switch {
	case engine.Playwright():
		b, err = l.launchPlaywright(engine)
	case engine == CDP:
		b, err = launchCDP(ctx, l.opts, l.log)
	default:
		err = fmt.Errorf("unknown browser engine %q", engine)
	}
	if err != nil {
		return nil, err
	}
	l.browsers = append(l.browsers, b)
	l.log.WithField("engine", engine).Info("Browser launched")
	return b, nil
}

func (l *Launcher) startPlaywright(engine Engine) error {
	runOpts := &playwright.RunOptions{Browsers: []string{string(engine)}}
	if l.opts.Install && os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" && !l.installed[engine] {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("could not install playwright browsers: %w", err)
		}
		if l.installed == nil {
			l.installed = make(map[Engine]bool)
		}
		l.installed[engine] = true
	}
	if l.pw != nil {
		return nil
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		// A driver version mismatch is fixed by installing the matching one.
		l.log.WithError(err).Warn("Playwright failed to start, installing driver and retrying")
		if ierr := playwright.Install(runOpts); ierr != nil {
			return fmt.Errorf("could not start playwright: %w", errors.Join(err, ierr))
		}
		pw, err = playwright.Run(runOpts)
		if err != nil {
			return fmt.Errorf("could not start playwright after retry: %w", err)
		}
	}
	l.pw = pw
	return nil
}

func (l *Launcher) launchPlaywright(engine Engine) (Browser, error) {
	if err := l.startPlaywright(engine); err != nil {
		return nil, err
	}
	var bt playwright.BrowserType
	switch engine {
	case Chromium:
		bt = l.pw.Chromium
	case Firefox:
		bt = l.pw.Firefox
	case WebKit:
		bt = l.pw.WebKit
	}
	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		SlowMo:   playwright.Float(float64(l.opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch %s: %w", engine, err)
	}
	return &pwBrowser{engine: engine, browser: b, log: l.log.WithField("engine", engine)}, nil
}

// Close closes every launched browser and stops the playwright driver.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, b := range l.browsers {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", b.Engine(), err))
		}
	}
	l.browsers = nil
	if l.pw != nil {
		if err := l.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		l.pw = nil
	}
	return errors.Join(errs...)
}
