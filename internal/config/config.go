package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pagecheck/pagecheck/internal/browser"
)

// EnvPrefix prefixes every environment override, e.g. PAGECHECK_RUN_WORKERS.
const EnvPrefix = "PAGECHECK"

// Config represents the harness configuration
type Config struct {
	Target    TargetConfig    `mapstructure:"target"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Run       RunConfig       `mapstructure:"run"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type TargetConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Path    string `mapstructure:"path"`
}

type BrowserConfig struct {
	Engines        []string      `mapstructure:"engines"`
	Headless       bool          `mapstructure:"headless"`
	SlowMo         time.Duration `mapstructure:"slow_mo"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	Install        bool          `mapstructure:"install"`
	ChromePath     string        `mapstructure:"chrome_path"`
}

type TimeoutsConfig struct {
	Navigation  time.Duration `mapstructure:"navigation"`
	Action      time.Duration `mapstructure:"action"`
	Observation time.Duration `mapstructure:"observation"`
	Scenario    time.Duration `mapstructure:"scenario"`
}

type RunConfig struct {
	Workers  int      `mapstructure:"workers"`
	Retries  int      `mapstructure:"retries"`
	Grep     string   `mapstructure:"grep"`
	Tags     []string `mapstructure:"tags"`
	Files    []string `mapstructure:"files"`
	TableDir string   `mapstructure:"table_dir"`
}

// Artifact capture modes, named after the playwright test runner options.
const (
	ModeOff             = "off"
	ModeOn              = "on"
	ModeOnlyOnFailure   = "only-on-failure"
	ModeRetainOnFailure = "retain-on-failure"
	ModeOnFirstRetry    = "on-first-retry"
)

type ArtifactsConfig struct {
	Dir        string `mapstructure:"dir"`
	Screenshot string `mapstructure:"screenshot"`
	Video      string `mapstructure:"video"`
	Trace      string `mapstructure:"trace"`
}

type ReportsConfig struct {
	JSON    string `mapstructure:"json"`
	HTMLDir string `mapstructure:"html_dir"`
	Metrics string `mapstructure:"metrics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target.base_url", "https://the-internet.herokuapp.com")
	v.SetDefault("target.path", "/checkboxes")

	v.SetDefault("browser.engines", []string{string(browser.Chromium)})
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", time.Duration(0))
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.install", true)
	v.SetDefault("browser.chrome_path", "")

	v.SetDefault("timeouts.navigation", 30*time.Second)
	v.SetDefault("timeouts.action", 10*time.Second)
	v.SetDefault("timeouts.observation", 500*time.Millisecond)
	v.SetDefault("timeouts.scenario", 60*time.Second)

	v.SetDefault("run.workers", 2)
	v.SetDefault("run.retries", 0)
	v.SetDefault("run.grep", "")
	v.SetDefault("run.tags", []string{})
	v.SetDefault("run.files", []string{})
	v.SetDefault("run.table_dir", "testdata/scenarios")

	v.SetDefault("artifacts.dir", "test-results")
	v.SetDefault("artifacts.screenshot", ModeOnlyOnFailure)
	v.SetDefault("artifacts.video", ModeRetainOnFailure)
	v.SetDefault("artifacts.trace", ModeOnFirstRetry)

	v.SetDefault("reports.json", "test-results/results.json")
	v.SetDefault("reports.html_dir", "playwright-report")
	v.SetDefault("reports.metrics", "test-results/metrics.prom")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// New returns a viper instance with defaults and environment overrides
// wired, ready for flag binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile (or pagecheck.yaml from the working directory when
// empty and present), applies environment overrides and validates.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	LoadDotEnv(".env")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("pagecheck")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// It's OK if pagecheck.yaml doesn't exist
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyLegacyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("default config does not unmarshal: %v", err))
	}
	return cfg
}

// applyLegacyEnv honours the unprefixed variables older harness scripts set.
// Prefixed variables win because viper has already applied them.
func applyLegacyEnv(cfg *Config) {
	if u := os.Getenv("BASE_URL"); u != "" && os.Getenv(EnvPrefix+"_TARGET_BASE_URL") == "" {
		cfg.Target.BaseURL = u
	}
	if os.Getenv("HEADLESS") == "false" && os.Getenv(EnvPrefix+"_BROWSER_HEADLESS") == "" {
		cfg.Browser.Headless = false
	}
	if s := os.Getenv("SLOW_MO"); s != "" && os.Getenv(EnvPrefix+"_BROWSER_SLOW_MO") == "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.Browser.SlowMo = time.Duration(n) * time.Millisecond
		} else {
			cfg.Browser.SlowMo = 100 * time.Millisecond
		}
	}
	if os.Getenv("SCREENSHOTS") == "false" && os.Getenv(EnvPrefix+"_ARTIFACTS_SCREENSHOT") == "" {
		cfg.Artifacts.Screenshot = ModeOff
	}
	if os.Getenv("VIDEOS") == "true" && os.Getenv(EnvPrefix+"_ARTIFACTS_VIDEO") == "" {
		cfg.Artifacts.Video = ModeOn
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Target.BaseURL) == "" {
		errs = append(errs, errors.New("target.base_url is required"))
	}
	if len(c.Browser.Engines) == 0 {
		errs = append(errs, errors.New("browser.engines must name at least one engine"))
	}
	for _, e := range c.Browser.Engines {
		if _, err := browser.ParseEngine(e); err != nil {
			errs = append(errs, fmt.Errorf("browser.engines: %w", err))
		}
	}
	if c.Run.Workers < 1 {
		errs = append(errs, fmt.Errorf("run.workers must be at least 1, got %d", c.Run.Workers))
	}
	if c.Run.Retries < 0 {
		errs = append(errs, fmt.Errorf("run.retries must not be negative, got %d", c.Run.Retries))
	}
	for name, d := range map[string]time.Duration{
		"timeouts.navigation":  c.Timeouts.Navigation,
		"timeouts.action":      c.Timeouts.Action,
		"timeouts.observation": c.Timeouts.Observation,
		"timeouts.scenario":    c.Timeouts.Scenario,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	errs = append(errs, checkMode("artifacts.screenshot", c.Artifacts.Screenshot, ModeOff, ModeOn, ModeOnlyOnFailure))
	errs = append(errs, checkMode("artifacts.video", c.Artifacts.Video, ModeOff, ModeOn, ModeRetainOnFailure, ModeOnFirstRetry))
	errs = append(errs, checkMode("artifacts.trace", c.Artifacts.Trace, ModeOff, ModeOn, ModeRetainOnFailure, ModeOnFirstRetry))
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func checkMode(key, mode string, allowed ...string) error {
	for _, a := range allowed {
		if mode == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), mode)
}

// Engines returns the parsed browser engines.
func (c *Config) Engines() []browser.Engine {
	engines := make([]browser.Engine, 0, len(c.Browser.Engines))
	for _, e := range c.Browser.Engines {
		if eng, err := browser.ParseEngine(e); err == nil {
			engines = append(engines, eng)
		}
	}
	return engines
}

// LaunchOptions converts the browser section for the launcher.
func (c *Config) LaunchOptions() browser.LaunchOptions {
	return browser.LaunchOptions{
		Headless:       c.Browser.Headless,
		SlowMo:         c.Browser.SlowMo,
		Install:        c.Browser.Install,
		ChromePath:     c.Browser.ChromePath,
		ViewportWidth:  c.Browser.ViewportWidth,
		ViewportHeight: c.Browser.ViewportHeight,
	}
}
