// Package config resolves where and how the acceptance suite runs.
package config

import (
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pagecheck/pagecheck/internal/browser"
	harness "github.com/pagecheck/pagecheck/internal/config"
)

// TestConfig holds all configuration for the acceptance tests.
type TestConfig struct {
	// BaseURL is empty when no site was configured; the suite then serves
	// the fixture itself.
	BaseURL     string
	Engines     []browser.Engine
	Launch      browser.LaunchOptions
	Timeouts    harness.TimeoutsConfig
	Screenshots bool
	Videos      bool
	SkipBrowser bool
}

var (
	loadOnce sync.Once
	loaded   *TestConfig
	loadErr  error
)

// GetConfig loads the harness configuration once. Only an explicit
// BASE_URL or PAGECHECK_TARGET_BASE_URL points the suite at a real site.
func GetConfig() (*TestConfig, error) {
	loadOnce.Do(func() {
		cfg, err := harness.Load(harness.New(), os.Getenv("PAGECHECK_CONFIG"))
		if err != nil {
			loadErr = err
			return
		}
		tc := &TestConfig{
			Engines:     cfg.Engines(),
			Launch:      cfg.LaunchOptions(),
			Timeouts:    cfg.Timeouts,
			Screenshots: cfg.Artifacts.Screenshot != harness.ModeOff,
			Videos:      cfg.Artifacts.Video == harness.ModeOn,
			SkipBrowser: strings.EqualFold(os.Getenv("SKIP_BROWSER"), "true"),
		}
		if os.Getenv("BASE_URL") != "" || os.Getenv(harness.EnvPrefix+"_TARGET_BASE_URL") != "" {
			tc.BaseURL = cfg.Target.BaseURL
		}
		loaded = tc
	})
	return loaded, loadErr
}

// Reachable reports whether base accepts TCP connections.
func Reachable(base string) bool {
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	d := net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.Dial("tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
