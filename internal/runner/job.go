package runner

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pagecheck/pagecheck/internal/browser"
	"github.com/pagecheck/pagecheck/internal/config"
	"github.com/pagecheck/pagecheck/internal/suite"
)

// Job is one scenario on one engine.
type Job struct {
	Scenario suite.Scenario
	Engine   browser.Engine
}

// Name is the job's display name.
func (j Job) Name() string {
	return fmt.Sprintf("[%s] %s", j.Engine, j.Scenario.ID())
}

// Jobs expands scenarios across engines, engine by engine.
func Jobs(scenarios []suite.Scenario, engines []browser.Engine) []Job {
	jobs := make([]Job, 0, len(scenarios)*len(engines))
	for _, e := range engines {
		for _, s := range scenarios {
			jobs = append(jobs, Job{Scenario: s, Engine: e})
		}
	}
	return jobs
}

// maxSlugRunes caps the readable part of an artifact directory name.
const maxSlugRunes = 80

// dir is where attempt n of the job keeps its artifacts. The slug keeps the
// name readable; the ID hash keeps scenarios with the same slug apart.
func (j Job) dir(root string, attempt int) string {
	h := fnv.New32a()
	h.Write([]byte(j.Scenario.ID()))
	name := fmt.Sprintf("%s-%08x-%s", slug(j.Scenario.File+"-"+j.Scenario.Name), h.Sum32(), j.Engine)
	if attempt > 1 {
		name += fmt.Sprintf("-retry%d", attempt-1)
	}
	return filepath.Join(root, name)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := []rune(strings.TrimSuffix(b.String(), "-"))
	if len(out) > maxSlugRunes {
		out = out[:maxSlugRunes]
	}
	return strings.TrimSuffix(string(out), "-")
}

// records reports whether a video or trace is captured on attempt n.
func records(mode string, attempt int) bool {
	switch mode {
	case config.ModeOn, config.ModeRetainOnFailure:
		return true
	case config.ModeOnFirstRetry:
		return attempt == 2
	}
	return false
}

// keeps reports whether a recorded video or trace survives the attempt.
func keeps(mode string, failed bool) bool {
	return mode != config.ModeRetainOnFailure || failed
}

// screenshots reports whether a screenshot is taken at the end of an attempt.
func screenshots(mode string, failed bool) bool {
	return mode == config.ModeOn || (mode == config.ModeOnlyOnFailure && failed)
}
