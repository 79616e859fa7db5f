package helpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/pagecheck/pagecheck/internal/browser"
	"github.com/pagecheck/pagecheck/internal/pages"
	"github.com/pagecheck/pagecheck/tests/e2e/config"
)

// BrowserHelper hands out fresh checkbox pages on real browsers.
type BrowserHelper struct {
	Config  *config.TestConfig
	BaseURL string
	Log     logrus.FieldLogger

	launcher *browser.Launcher
	mu       sync.Mutex
	browsers map[browser.Engine]browser.Browser
	failed   map[browser.Engine]error
}

// NewBrowserHelper creates a helper targeting baseURL.
func NewBrowserHelper(cfg *config.TestConfig, baseURL string, log logrus.FieldLogger) *BrowserHelper {
	opts := cfg.Launch
	opts.Logger = log
	return &BrowserHelper{
		Config:   cfg,
		BaseURL:  baseURL,
		Log:      log,
		launcher: browser.NewLauncher(opts),
		browsers: map[browser.Engine]browser.Browser{},
		failed:   map[browser.Engine]error{},
	}
}

// Browser returns the engine's browser, launching it on first use. A
// browser that cannot be launched skips the test rather than failing it.
func (b *BrowserHelper) Browser(t *testing.T, engine browser.Engine) browser.Browser {
	t.Helper()
	if b.Config.SkipBrowser {
		t.Skip("SKIP_BROWSER=true")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failed[engine]; ok {
		t.Skipf("%s unavailable: %v", engine, err)
	}
	if br, ok := b.browsers[engine]; ok {
		return br
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	br, err := b.launcher.Launch(ctx, engine)
	if err != nil {
		b.failed[engine] = err
		t.Skipf("%s unavailable: %v", engine, err)
	}
	b.browsers[engine] = br
	return br
}

// CheckboxPage opens a fresh page on engine and loads path ("" for the
// reference page). The page is closed when the test ends, after a
// screenshot if the test failed.
func (b *BrowserHelper) CheckboxPage(t *testing.T, engine browser.Engine, path string) *pages.CheckboxPage {
	t.Helper()
	br := b.Browser(t, engine)

	opts := browser.PageOptions{
		ActionTimeout:     b.Config.Timeouts.Action,
		NavigationTimeout: b.Config.Timeouts.Navigation,
	}
	if b.Config.Videos {
		opts.VideoDir = filepath.Join("test-results", "videos")
	}
	page, err := br.NewPage(context.Background(), opts)
	require.NoError(t, err, "Failed to open page")
	t.Cleanup(func() { b.tearDown(t, page) })

	cp := pages.NewCheckboxPage(pages.NewBase(page, b.BaseURL, pages.Timeouts{
		Navigation:  b.Config.Timeouts.Navigation,
		Observation: b.Config.Timeouts.Observation,
	}), path)
	require.NoError(t, cp.Navigate(context.Background()), "Failed to load checkbox page")
	return cp
}

func (b *BrowserHelper) tearDown(t *testing.T, page browser.Page) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if t.Failed() && b.Config.Screenshots {
		name := strings.NewReplacer("/", "_", " ", "_", `"`, "").Replace(t.Name())
		path := filepath.Join("test-results", "screenshots", fmt.Sprintf("%s_%d.png", name, time.Now().Unix()))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			if err := page.Screenshot(ctx, path); err != nil {
				t.Logf("screenshot failed: %v", err)
			} else {
				t.Logf("screenshot: %s", path)
			}
		}
	}
	if _, err := page.Close(ctx); err != nil {
		t.Logf("closing page: %v", err)
	}
}

// Close stops every browser and the driver.
func (b *BrowserHelper) Close() error {
	return b.launcher.Close()
}
