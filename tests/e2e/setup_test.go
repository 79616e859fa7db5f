package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pagecheck/pagecheck/internal/fixture"
	"github.com/pagecheck/pagecheck/tests/e2e/config"
	"github.com/pagecheck/pagecheck/tests/e2e/helpers"
)

var (
	cfg *config.TestConfig
	bh  *helpers.BrowserHelper
	// local is set when the suite serves the fixture itself.
	local bool
)

func TestMain(m *testing.M) {
	os.Exit(runMain(m))
}

func runMain(m *testing.M) int {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	if os.Getenv("E2E_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}

	var err error
	cfg, err = config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e: %v\n", err)
		return 2
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		srv, err := fixture.Start("127.0.0.1:0", log.WithField("component", "fixture"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "e2e: %v\n", err)
			return 2
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		baseURL = srv.URL()
		local = true
	} else if !cfg.SkipBrowser && !config.Reachable(baseURL) {
		log.WithField("base_url", baseURL).Warn("e2e target unreachable, skipping browser tests")
		cfg.SkipBrowser = true
	}
	log.WithField("base_url", baseURL).Info("e2e target")

	bh = helpers.NewBrowserHelper(cfg, baseURL, log.WithField("component", "launcher"))
	defer func() {
		if err := bh.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "e2e: closing browsers: %v\n", err)
		}
	}()
	return m.Run()
}
