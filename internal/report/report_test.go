package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecheck/pagecheck/internal/browser"
	"github.com/pagecheck/pagecheck/internal/pages"
	"github.com/pagecheck/pagecheck/internal/suite"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		return t0.Add(time.Duration(calls-1) * time.Second)
	}
}

func sampleCollector() *Collector {
	c := newCollector(fixedClock())
	c.Add(Result{Scenario: "b", File: "checkboxes", Engine: "firefox", Status: Passed, Attempts: 1, Duration: 300 * time.Millisecond})
	c.Add(Result{Scenario: "a", File: "checkboxes", Engine: "chromium", Status: Passed, Attempts: 1, Duration: 200 * time.Millisecond})
	c.Add(Result{
		Scenario: "check <0>", File: "checkboxes", Engine: "chromium", Status: Failed, Attempts: 1,
		Duration:  time.Second,
		Error:     "checkbox 0 out of sync",
		ErrorKind: KindStateSync,
		Artifacts: Artifacts{Screenshot: "test-results/shot.png"},
	})
	c.Add(Result{Scenario: "enter", File: "interference", Engine: "chromium", Status: Flaky, Attempts: 2, Duration: 2 * time.Second, Error: "timeout", ErrorKind: KindTimeout})
	return c
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{&pages.StateSyncError{Index: 0, Property: true}, KindStateSync},
		{fmt.Errorf("wrapped: %w", &pages.StateSyncError{}), KindStateSync},
		{&pages.NavigationTimeoutError{URL: "u", Err: browser.ErrTimeout}, KindNavigationTimeout},
		{fmt.Errorf("%w: refused", pages.ErrNavigation), KindNavigation},
		{&pages.ElementNotFoundError{Selector: "x", Index: 3}, KindElementNotFound},
		{&suite.AssertionError{Message: "m"}, KindAssertion},
		{context.Canceled, KindCancelled},
		{fmt.Errorf("%w: http://x/checkboxes: %w", pages.ErrNavigation, context.Canceled), KindCancelled},
		{context.DeadlineExceeded, KindTimeout},
		{fmt.Errorf("click: %w", browser.ErrTimeout), KindTimeout},
		{errors.New("other"), KindError},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestCollectorSummary(t *testing.T) {
	c := sampleCollector()
	s := c.Summary()

	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Flaky)
	assert.Equal(t, 1, s.StateSyncErrors)
	assert.False(t, s.OK())
	assert.Equal(t, time.Second, s.Duration)

	require.Len(t, s.Engines, 2)
	assert.Equal(t, "chromium", s.Engines[0].Engine)
	assert.Equal(t, 3, s.Engines[0].Total)
	assert.Equal(t, "firefox", s.Engines[1].Engine)
	assert.Equal(t, 1, s.Engines[1].Passed)

	var order []string
	for _, r := range c.Results() {
		order = append(order, r.Engine+":"+r.ID())
	}
	assert.Equal(t, []string{
		"chromium:checkboxes › a",
		"firefox:checkboxes › b",
		"chromium:checkboxes › check <0>",
		"chromium:interference › enter",
	}, order)
}

func TestSummaryOKWithFlaky(t *testing.T) {
	c := NewCollector()
	c.Add(Result{Scenario: "x", File: "f", Engine: "webkit", Status: Flaky, Attempts: 2})
	assert.True(t, c.Summary().OK())
}

func TestCollectorConcurrentAdd(t *testing.T) {
	c := NewCollector()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			c.Add(Result{Scenario: fmt.Sprint(i), File: "f", Engine: "chromium", Status: Passed, Attempts: 1})
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Len(t, c.Results(), 8)
	assert.Equal(t, 8.0, testutil.ToFloat64(c.Metrics().scenarios.WithLabelValues("chromium", "passed")))
}

func TestWriteJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := sampleCollector()
	require.NoError(t, WriteJSON(fs, "test-results/results.json", c))

	data, err := afero.ReadFile(fs, "test-results/results.json")
	require.NoError(t, err)

	var doc struct {
		Summary struct {
			RunID  string `json:"run_id"`
			Total  int    `json:"total"`
			Failed int    `json:"failed"`
		} `json:"summary"`
		Results []Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, c.RunID(), doc.Summary.RunID)
	assert.Equal(t, 4, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Failed)
	require.Len(t, doc.Results, 4)
	assert.Equal(t, KindStateSync, doc.Results[2].ErrorKind)
	assert.Equal(t, "test-results/shot.png", doc.Results[2].Artifacts.Screenshot)
}

func TestWriteJSONReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	assert.Error(t, WriteJSON(fs, "out/results.json", sampleCollector()))
}

func TestWriteHTML(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := sampleCollector()
	require.NoError(t, WriteHTML(fs, "test-results/html", c))

	data, err := afero.ReadFile(fs, "test-results/html/index.html")
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, c.RunID())
	assert.Contains(t, html, "check &lt;0&gt;", "scenario names are escaped")
	assert.NotContains(t, html, "check <0>")
	assert.Contains(t, html, "[state_sync] checkbox 0 out of sync")
	assert.Contains(t, html, `href="../shot.png"`)
	assert.Contains(t, html, "2 passed")
	assert.Contains(t, html, "<td>firefox</td>")
}

func TestMetrics(t *testing.T) {
	c := sampleCollector()
	m := c.Metrics()

	expected := `
# HELP pagecheck_scenarios_total Scenarios finished, by engine and final status.
# TYPE pagecheck_scenarios_total counter
pagecheck_scenarios_total{engine="chromium",status="failed"} 1
pagecheck_scenarios_total{engine="chromium",status="flaky"} 1
pagecheck_scenarios_total{engine="chromium",status="passed"} 1
pagecheck_scenarios_total{engine="firefox",status="passed"} 1
# HELP pagecheck_state_sync_errors_total Scenarios failed because the checked property and attribute disagreed.
# TYPE pagecheck_state_sync_errors_total counter
pagecheck_state_sync_errors_total{engine="chromium"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"pagecheck_scenarios_total", "pagecheck_state_sync_errors_total"))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.attempts.WithLabelValues("chromium")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestWriteTextfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := sampleCollector().Metrics()
	require.NoError(t, m.WriteTextfile(fs, "test-results/metrics.prom"))

	data, err := afero.ReadFile(fs, "test-results/metrics.prom")
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `pagecheck_scenarios_total{engine="firefox",status="passed"} 1`)
	assert.Contains(t, text, `pagecheck_scenario_duration_seconds_count{engine="chromium"} 3`)
	assert.Contains(t, text, "# TYPE pagecheck_scenario_duration_seconds histogram")

	exists, err := afero.Exists(fs, "test-results/metrics.prom.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := sampleCollector()
	PrintSummary(&buf, c, false)
	out := buf.String()

	assert.Contains(t, out, "  ✓ [chromium] checkboxes › a (200ms)")
	assert.Contains(t, out, "  ✘ [chromium] checkboxes › check <0> (1s)")
	assert.Contains(t, out, "  ± [chromium] interference › enter (2s)")
	assert.Contains(t, out, "  1) [chromium] checkboxes › check <0>")
	assert.Contains(t, out, "     state_sync: checkbox 0 out of sync")
	assert.Contains(t, out, "     screenshot: test-results/shot.png")
	assert.Contains(t, out, "  2) [chromium] interference › enter")
	assert.Contains(t, out, "  2 passed\n  1 failed\n  1 flaky\n")
	assert.Contains(t, out, "run "+c.RunID())
	assert.NotContains(t, out, "\x1b[")
}

func TestPrintSummaryColored(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sampleCollector(), true)
	assert.Contains(t, buf.String(), "\x1b[32m")
}

func TestColorEnabled(t *testing.T) {
	assert.False(t, ColorEnabled(&bytes.Buffer{}))
}
