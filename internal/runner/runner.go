package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pagecheck/pagecheck/internal/browser"
	"github.com/pagecheck/pagecheck/internal/config"
	"github.com/pagecheck/pagecheck/internal/exitcode"
	"github.com/pagecheck/pagecheck/internal/pages"
	"github.com/pagecheck/pagecheck/internal/report"
	"github.com/pagecheck/pagecheck/internal/suite"
)

// cleanupTimeout bounds screenshots and page teardown after an attempt,
// including attempts that ran out of time.
const cleanupTimeout = 10 * time.Second

// Launcher starts one browser per engine. *browser.Launcher implements it;
// the launcher, not the runner, closes what it launched.
type Launcher interface {
	Launch(ctx context.Context, engine browser.Engine) (browser.Browser, error)
}

// Options configure a run.
type Options struct {
	Workers int
	// Retries is how many extra attempts a failed scenario gets.
	Retries int

	BaseURL string
	Path    string

	Timeouts        pages.Timeouts
	ActionTimeout   time.Duration
	ScenarioTimeout time.Duration
	ViewportWidth   int
	ViewportHeight  int

	ArtifactsDir string
	Screenshot   string
	Video        string
	Trace        string
}

// OptionsFromConfig maps the loaded configuration onto runner options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers: cfg.Run.Workers,
		Retries: cfg.Run.Retries,
		BaseURL: cfg.Target.BaseURL,
		Path:    cfg.Target.Path,
		Timeouts: pages.Timeouts{
			Navigation:  cfg.Timeouts.Navigation,
			Observation: cfg.Timeouts.Observation,
		},
		ActionTimeout:   cfg.Timeouts.Action,
		ScenarioTimeout: cfg.Timeouts.Scenario,
		ViewportWidth:   cfg.Browser.ViewportWidth,
		ViewportHeight:  cfg.Browser.ViewportHeight,
		ArtifactsDir:    cfg.Artifacts.Dir,
		Screenshot:      cfg.Artifacts.Screenshot,
		Video:           cfg.Artifacts.Video,
		Trace:           cfg.Artifacts.Trace,
	}
}

// Runner executes scenario jobs on a pool of workers.
type Runner struct {
	launcher Launcher
	opts     Options
	logger   logrus.FieldLogger
}

// New creates a runner.
func New(launcher Launcher, opts Options, logger logrus.FieldLogger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.ScenarioTimeout <= 0 {
		opts.ScenarioTimeout = 60 * time.Second
	}
	if opts.ArtifactsDir == "" {
		opts.ArtifactsDir = "test-results"
	}
	return &Runner{launcher: launcher, opts: opts, logger: logger.WithField("component", "runner")}
}

// Run launches every engine, then runs each scenario on each engine and
// records the outcome in c. Once ctx is done no new job starts; the jobs
// left over are recorded as skipped and ctx's error is returned.
func (r *Runner) Run(ctx context.Context, scenarios []suite.Scenario, engines []browser.Engine, c *report.Collector) error {
	browsers := make(map[browser.Engine]browser.Browser, len(engines))
	for _, e := range engines {
		b, err := r.launcher.Launch(ctx, e)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return exitcode.Wrap(fmt.Errorf("failed to launch %s: %w", e, err), exitcode.BrowserLaunch)
		}
		browsers[e] = b
	}

	all := Jobs(scenarios, engines)
	workers := min(r.opts.Workers, len(all))
	r.logger.WithFields(logrus.Fields{
		"scenarios": len(scenarios),
		"engines":   len(engines),
		"jobs":      len(all),
		"workers":   workers,
	}).Info("Starting run")

	jobs := make(chan Job)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					c.Add(skipped(j))
					continue
				}
				c.Add(r.execute(ctx, browsers[j.Engine], j))
			}
		}()
	}

	for _, j := range all {
		if ctx.Err() != nil {
			c.Add(skipped(j))
			continue
		}
		select {
		case jobs <- j:
		case <-ctx.Done():
			c.Add(skipped(j))
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		r.logger.WithError(err).Warn("Run interrupted")
		return err
	}
	r.logger.Info("Run finished")
	return nil
}

func skipped(j Job) report.Result {
	res := newResult(j)
	res.Status = report.Skipped
	res.Error = "run cancelled before the scenario started"
	return res
}

func newResult(j Job) report.Result {
	return report.Result{
		Scenario: j.Scenario.Name,
		File:     j.Scenario.File,
		Source:   j.Scenario.Source,
		Tags:     j.Scenario.Tags,
		Engine:   string(j.Engine),
	}
}

// execute runs every attempt of j and folds them into one result.
func (r *Runner) execute(ctx context.Context, b browser.Browser, j Job) report.Result {
	res := newResult(j)
	start := time.Now()
	var err error
	for attempt := 1; attempt <= 1+r.opts.Retries; attempt++ {
		res.Attempts = attempt
		log := r.logger.WithFields(logrus.Fields{
			"scenario": j.Scenario.ID(),
			"engine":   j.Engine,
			"attempt":  attempt,
		})

		var art report.Artifacts
		art, err = r.attempt(ctx, b, j, attempt, log)
		mergeArtifacts(&res.Artifacts, art)
		if err == nil {
			log.Debug("Scenario passed")
			break
		}
		if pages.IsStateSync(err) {
			log.WithError(err).Error("Scenario failed with a state sync error; not retrying")
			break
		}
		if ctx.Err() != nil {
			break
		}
		log.WithError(err).Warn("Scenario attempt failed")
	}
	res.Duration = time.Since(start)

	switch {
	case err == nil && res.Attempts > 1:
		res.Status = report.Flaky
	case err == nil:
		res.Status = report.Passed
	default:
		res.Status = report.Failed
		res.Error = err.Error()
		res.ErrorKind = report.Classify(err)
	}
	return res
}

// attempt opens a fresh page, loads the checkbox page and runs the
// scenario body under the scenario timeout.
func (r *Runner) attempt(ctx context.Context, b browser.Browser, j Job, attempt int, log logrus.FieldLogger) (report.Artifacts, error) {
	var art report.Artifacts
	dir := j.dir(r.opts.ArtifactsDir, attempt)

	pageOpts := browser.PageOptions{
		ViewportWidth:     r.opts.ViewportWidth,
		ViewportHeight:    r.opts.ViewportHeight,
		ActionTimeout:     r.opts.ActionTimeout,
		NavigationTimeout: r.opts.Timeouts.Navigation,
	}
	if records(r.opts.Video, attempt) {
		pageOpts.VideoDir = filepath.Join(dir, "video")
	}
	if records(r.opts.Trace, attempt) {
		pageOpts.TracePath = filepath.Join(dir, "trace.zip")
	}
	if pageOpts.VideoDir != "" || pageOpts.TracePath != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return art, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}

	actx, cancel := context.WithTimeout(ctx, r.opts.ScenarioTimeout)
	defer cancel()

	page, err := b.NewPage(actx, pageOpts)
	if err != nil {
		return art, fmt.Errorf("failed to open page: %w", err)
	}

	cp := pages.NewCheckboxPage(pages.NewBase(page, r.opts.BaseURL, r.opts.Timeouts), r.opts.Path)
	err = cp.Navigate(actx)
	if err == nil {
		err = j.Scenario.Run(actx, &suite.Env{Page: cp, Engine: j.Engine, Log: log})
	}
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("scenario timed out after %s: %w", r.opts.ScenarioTimeout, err)
	}
	failed := err != nil

	cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer ccancel()
	if screenshots(r.opts.Screenshot, failed) {
		path := filepath.Join(dir, "screenshot.png")
		if serr := os.MkdirAll(dir, 0o755); serr != nil {
			log.WithError(serr).Warn("Failed to create artifact directory")
		} else if serr := page.Screenshot(cctx, path); serr != nil {
			log.WithError(serr).Warn("Failed to capture screenshot")
		} else {
			art.Screenshot = path
		}
	}

	recorded, cerr := page.Close(cctx)
	if cerr != nil {
		log.WithError(cerr).Warn("Failed to close page")
	}
	if recorded.Video != "" {
		if keeps(r.opts.Video, failed) {
			art.Video = recorded.Video
		} else {
			discard(recorded.Video, log)
		}
	}
	if recorded.Trace != "" {
		if keeps(r.opts.Trace, failed) {
			art.Trace = recorded.Trace
		} else {
			discard(recorded.Trace, log)
		}
	}
	if art.Empty() {
		prune(dir)
	}
	return art, err
}

// prune removes dir and its video subdirectory when nothing was kept in
// them. Non-empty directories stay.
func prune(dir string) {
	_ = os.Remove(filepath.Join(dir, "video"))
	_ = os.Remove(dir)
}

func discard(path string, log logrus.FieldLogger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("path", path).Debug("Failed to remove artifact")
	}
}

// mergeArtifacts keeps the latest artifact of each kind.
func mergeArtifacts(into *report.Artifacts, from report.Artifacts) {
	if from.Screenshot != "" {
		into.Screenshot = from.Screenshot
	}
	if from.Video != "" {
		into.Video = from.Video
	}
	if from.Trace != "" {
		into.Trace = from.Trace
	}
}
