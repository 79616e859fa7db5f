package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecheck/pagecheck/internal/browser"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://the-internet.herokuapp.com", cfg.Target.BaseURL)
	assert.Equal(t, "/checkboxes", cfg.Target.Path)
	assert.Equal(t, []string{"chromium"}, cfg.Browser.Engines)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Navigation)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeouts.Observation)
	assert.Equal(t, 2, cfg.Run.Workers)
	assert.Zero(t, cfg.Run.Retries)
	assert.Equal(t, ModeOnlyOnFailure, cfg.Artifacts.Screenshot)
	assert.Equal(t, ModeOnFirstRetry, cfg.Artifacts.Trace)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pagecheck.yaml", `
target:
  base_url: http://localhost:9000
browser:
  engines: [chromium, firefox, cdp]
  headless: false
timeouts:
  action: 3s
run:
  workers: 4
  retries: 2
  tags: [smoke]
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.Target.BaseURL)
	assert.Equal(t, []browser.Engine{browser.Chromium, browser.Firefox, browser.CDP}, cfg.Engines())
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Action)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Navigation, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Run.Workers)
	assert.Equal(t, 2, cfg.Run.Retries)
	assert.Equal(t, []string{"smoke"}, cfg.Run.Tags)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PAGECHECK_RUN_WORKERS", "6")
	t.Setenv("PAGECHECK_TIMEOUTS_OBSERVATION", "250ms")
	t.Setenv("PAGECHECK_BROWSER_ENGINES", "webkit,firefox")

	path := writeFile(t, t.TempDir(), "c.yaml", "run:\n  workers: 3\n")
	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Run.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeouts.Observation)
	assert.Equal(t, []browser.Engine{browser.WebKit, browser.Firefox}, cfg.Engines())
}

func TestLegacyEnvironment(t *testing.T) {
	t.Setenv("BASE_URL", "http://legacy:8080")
	t.Setenv("HEADLESS", "false")
	t.Setenv("SLOW_MO", "1")
	t.Setenv("SCREENSHOTS", "false")
	t.Setenv("VIDEOS", "true")

	path := writeFile(t, t.TempDir(), "c.yaml", "{}\n")
	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://legacy:8080", cfg.Target.BaseURL)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, time.Millisecond, cfg.Browser.SlowMo)
	assert.Equal(t, ModeOff, cfg.Artifacts.Screenshot)
	assert.Equal(t, ModeOn, cfg.Artifacts.Video)
}

func TestPrefixedEnvBeatsLegacy(t *testing.T) {
	t.Setenv("BASE_URL", "http://legacy:8080")
	t.Setenv("PAGECHECK_TARGET_BASE_URL", "http://new:8080")

	path := writeFile(t, t.TempDir(), "c.yaml", "{}\n")
	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://new:8080", cfg.Target.BaseURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty base url", func(c *Config) { c.Target.BaseURL = " " }, "target.base_url is required"},
		{"no engines", func(c *Config) { c.Browser.Engines = nil }, "at least one engine"},
		{"unknown engine", func(c *Config) { c.Browser.Engines = []string{"lynx"} }, `unknown browser engine "lynx"`},
		{"zero workers", func(c *Config) { c.Run.Workers = 0 }, "run.workers must be at least 1"},
		{"negative retries", func(c *Config) { c.Run.Retries = -1 }, "run.retries must not be negative"},
		{"zero timeout", func(c *Config) { c.Timeouts.Action = 0 }, "timeouts.action must be positive"},
		{"bad screenshot mode", func(c *Config) { c.Artifacts.Screenshot = "on-first-retry" }, "artifacts.screenshot must be one of"},
		{"bad trace mode", func(c *Config) { c.Artifacts.Trace = "sometimes" }, "artifacts.trace must be one of"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format must be text or json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := Default()
		cfg.Run.Workers = 0
		cfg.Run.Retries = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run.workers")
		assert.Contains(t, err.Error(), "run.retries")
	})
}

func TestLaunchOptions(t *testing.T) {
	cfg := Default()
	cfg.Browser.SlowMo = 50 * time.Millisecond
	opts := cfg.LaunchOptions()
	assert.True(t, opts.Headless)
	assert.Equal(t, 50*time.Millisecond, opts.SlowMo)
	assert.Equal(t, 1280, opts.ViewportWidth)
	assert.Equal(t, 720, opts.ViewportHeight)
}

func TestParseDotEnvLine(t *testing.T) {
	tests := []struct {
		line     string
		key, val string
		ok       bool
	}{
		{"BASE_URL=http://x", "BASE_URL", "http://x", true},
		{`QUOTED="a b"`, "QUOTED", "a b", true},
		{"SINGLE='c'", "SINGLE", "c", true},
		{"export EXPORTED=1", "EXPORTED", "1", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"EMPTY=", "", "", false},
		{"=nokey", "", "", false},
		{"novalue", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			k, v, ok := parseDotEnvLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, k)
			assert.Equal(t, tt.val, v)
		})
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", "PAGECHECK_TEST_KEEP=fromfile\nPAGECHECK_TEST_NEW=fromfile\n")
	t.Setenv("PAGECHECK_TEST_KEEP", "fromenv")
	t.Setenv("PAGECHECK_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("PAGECHECK_TEST_NEW"))

	LoadDotEnv(path)

	assert.Equal(t, "fromenv", os.Getenv("PAGECHECK_TEST_KEEP"))
	assert.Equal(t, "fromfile", os.Getenv("PAGECHECK_TEST_NEW"))
}
