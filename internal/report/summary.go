package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	passMark  = "✓"
	failMark  = "✘"
	flakyMark = "±"
	skipMark  = "-"
)

// ColorEnabled reports whether w is a terminal that should get colors.
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette struct {
	pass, fail, flaky, gray *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		pass:  color.New(color.FgGreen),
		fail:  color.New(color.FgRed),
		flaky: color.New(color.FgYellow),
		gray:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.flaky, p.gray} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// PrintSummary writes one line per result, the errors of failed results
// and a closing tally.
func PrintSummary(w io.Writer, c *Collector, colored bool) {
	p := newPalette(colored)
	results := c.Results()
	for _, r := range results {
		mark, col := passMark, p.pass
		switch r.Status {
		case Failed:
			mark, col = failMark, p.fail
		case Flaky:
			mark, col = flakyMark, p.flaky
		case Skipped:
			mark, col = skipMark, p.gray
		}
		_, _ = col.Fprintf(w, "  %s ", mark)
		_, _ = fmt.Fprintf(w, "[%s] %s", r.Engine, r.ID())
		_, _ = p.gray.Fprintf(w, " (%s)\n", r.Duration.Round(time.Millisecond))
	}

	failures := 0
	for _, r := range results {
		if r.Status != Failed && r.Status != Flaky {
			continue
		}
		failures++
		if failures == 1 {
			_, _ = fmt.Fprintln(w)
		}
		col := p.fail
		if r.Status == Flaky {
			col = p.flaky
		}
		_, _ = col.Fprintf(w, "  %d) [%s] %s\n", failures, r.Engine, r.ID())
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "     %s: %s\n", r.ErrorKind, r.Error)
		}
		if r.Artifacts.Screenshot != "" {
			_, _ = p.gray.Fprintf(w, "     screenshot: %s\n", r.Artifacts.Screenshot)
		}
	}

	s := c.Summary()
	_, _ = fmt.Fprintln(w)
	if s.Passed > 0 {
		_, _ = p.pass.Fprintf(w, "  %d passed\n", s.Passed)
	}
	if s.Failed > 0 {
		_, _ = p.fail.Fprintf(w, "  %d failed\n", s.Failed)
	}
	if s.Flaky > 0 {
		_, _ = p.flaky.Fprintf(w, "  %d flaky\n", s.Flaky)
	}
	if s.Skipped > 0 {
		_, _ = p.gray.Fprintf(w, "  %d skipped\n", s.Skipped)
	}
	_, _ = p.gray.Fprintf(w, "  run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
}
