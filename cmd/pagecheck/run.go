package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pagecheck/pagecheck/internal/browser"
	"github.com/pagecheck/pagecheck/internal/config"
	"github.com/pagecheck/pagecheck/internal/exitcode"
	"github.com/pagecheck/pagecheck/internal/fixture"
	"github.com/pagecheck/pagecheck/internal/report"
	"github.com/pagecheck/pagecheck/internal/runner"
	"github.com/pagecheck/pagecheck/internal/scenario"
	"github.com/pagecheck/pagecheck/internal/suite"
)

func newRunCmd(c *cli) *cobra.Command {
	var serveFixture bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenarios on every configured engine",
		Long: `Run loads the checkbox page once per scenario and engine, in a fresh
browser context each time, and verifies the outcome. Failed scenarios are
retried up to --retries times unless they failed with a state sync error.

Exit codes: 0 all passed, 1 scenarios failed, 2 invalid configuration,
3 a browser could not be launched, 4 a report could not be written.`,
		Example: `  pagecheck run
  pagecheck run --browser chromium --browser firefox --workers 4
  pagecheck run --tag @smoke --headed
  pagecheck run --serve-fixture --browser cdp`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(c.v, cmd.Flags(), map[string]string{
				"run.files":       "file",
				"run.grep":        "grep",
				"run.tags":        "tag",
				"run.table_dir":   "table-dir",
				"browser.engines": "browser",
				"run.workers":     "workers",
				"run.retries":     "retries",
				"target.base_url": "base-url",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if headed, _ := cmd.Flags().GetBool("headed"); headed {
				c.v.Set("browser.headless", false)
			}
			return c.run(cmd, serveFixture)
		},
	}
	fs := cmd.Flags()
	scenarioFlags(fs)
	fs.StringSlice("browser", nil, "engines to run: "+strings.Join(browser.EngineNames(), ", "))
	fs.Bool("headed", false, "show the browser windows")
	fs.Int("workers", 0, "scenarios run in parallel")
	fs.Int("retries", 0, "extra attempts for a failed scenario")
	fs.String("base-url", "", "site under test")
	fs.BoolVar(&serveFixture, "serve-fixture", false, "serve the reference page locally and test against it")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the scenarios a run would execute",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(c.v, cmd.Flags(), scenarioFlagKeys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			selected, err := selectScenarios(cfg)
			if err != nil {
				return err
			}
			for _, s := range selected {
				line := s.ID()
				if len(s.Tags) > 0 {
					line += "  @" + strings.Join(s.Tags, " @")
				}
				fmt.Fprintln(c.stdout, line)
			}
			fmt.Fprintf(c.stdout, "\n%d scenarios on %s\n", len(selected), strings.Join(cfg.Browser.Engines, ", "))
			return nil
		},
	}
	scenarioFlags(cmd.Flags())
	return cmd
}

// selectScenarios loads the catalogue plus every table and applies the
// configured filters. An empty selection is an error.
func selectScenarios(cfg *config.Config) ([]suite.Scenario, error) {
	filter, err := suite.NewFilter(cfg.Run.Files, cfg.Run.Grep, cfg.Run.Tags)
	if err != nil {
		return nil, exitcode.Wrap(err, exitcode.InvalidConfig)
	}
	tables, err := scenario.LoadDir(cfg.Run.TableDir)
	if err != nil {
		return nil, exitcode.Wrap(err, exitcode.InvalidConfig)
	}
	all := append(suite.Catalogue(), suite.FromTables(tables)...)
	selected := suite.Select(all, filter)
	if len(selected) == 0 {
		return nil, exitcode.WithHint(
			exitcode.Wrap(errors.New("no scenarios match the filters"), exitcode.InvalidConfig),
			"run pagecheck list to see what is available")
	}
	return selected, nil
}

func (c *cli) run(cmd *cobra.Command, serveFixture bool) error {
	cfg, err := c.load(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, c.stderr)
	if err != nil {
		return err
	}
	selected, err := selectScenarios(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveFixture {
		srv, err := fixture.Start("127.0.0.1:0", logger.WithField("component", "fixture"))
		if err != nil {
			return err
		}
		defer shutdownFixture(srv, logger)
		cfg.Target.BaseURL = srv.URL()
	}

	opts := cfg.LaunchOptions()
	opts.Logger = logger.WithField("component", "launcher")
	launcher := browser.NewLauncher(opts)
	defer func() {
		if err := launcher.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close browsers")
		}
	}()

	collector := report.NewCollector()
	logger.WithFields(logrus.Fields{
		"run_id":   collector.RunID(),
		"base_url": cfg.Target.BaseURL,
		"engines":  cfg.Browser.Engines,
	}).Info("Running scenarios")

	runErr := runner.New(launcher, runner.OptionsFromConfig(cfg), logger).Run(ctx, selected, cfg.Engines(), collector)
	if exitcode.Of(runErr) == exitcode.BrowserLaunch {
		return exitcode.WithHint(runErr, "install the browsers with browser.install: true or set PLAYWRIGHT_PREINSTALLED=1 when they are already present")
	}

	if err := writeReports(afero.NewOsFs(), cfg.Reports, collector); err != nil {
		return err
	}
	report.PrintSummary(c.stdout, collector, report.ColorEnabled(c.stdout))

	if runErr != nil {
		return exitcode.Wrap(runErr, exitcode.ScenariosFailed)
	}
	if s := collector.Summary(); !s.OK() {
		return exitcode.Wrap(fmt.Errorf("%d of %d scenarios failed", s.Failed, s.Total), exitcode.ScenariosFailed)
	}
	return nil
}

// writeReports writes every configured report; an empty path skips one.
func writeReports(fs afero.Fs, cfg config.ReportsConfig, c *report.Collector) error {
	var errs []error
	if cfg.JSON != "" {
		errs = append(errs, report.WriteJSON(fs, cfg.JSON, c))
	}
	if cfg.HTMLDir != "" {
		errs = append(errs, report.WriteHTML(fs, cfg.HTMLDir, c))
	}
	if cfg.Metrics != "" {
		errs = append(errs, c.Metrics().WriteTextfile(fs, cfg.Metrics))
	}
	return exitcode.Wrap(errors.Join(errs...), exitcode.ReportWrite)
}

func shutdownFixture(srv *fixture.Server, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Failed to stop fixture server")
	}
}
