package report

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Collector accumulates results from concurrent workers.
type Collector struct {
	runID   uuid.UUID
	started time.Time
	now     func() time.Time
	metrics *Metrics

	mu      sync.Mutex
	results []Result
}

// NewCollector starts a run with a fresh run ID.
func NewCollector() *Collector {
	return newCollector(time.Now)
}

func newCollector(now func() time.Time) *Collector {
	return &Collector{
		runID:   uuid.New(),
		started: now(),
		now:     now,
		metrics: NewMetrics(),
	}
}

func (c *Collector) RunID() string     { return c.runID.String() }
func (c *Collector) Metrics() *Metrics { return c.metrics }

// Add records r and updates the metrics.
func (c *Collector) Add(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.metrics.Observe(r)
}

// Results returns a copy ordered by file, scenario and engine.
func (c *Collector) Results() []Result {
	c.mu.Lock()
	out := slices.Clone(c.results)
	c.mu.Unlock()
	slices.SortStableFunc(out, func(a, b Result) int {
		if n := strings.Compare(a.File, b.File); n != 0 {
			return n
		}
		if n := strings.Compare(a.Scenario, b.Scenario); n != 0 {
			return n
		}
		return strings.Compare(a.Engine, b.Engine)
	})
	return out
}

// Counts tallies results by status.
type Counts struct {
	Total           int `json:"total"`
	Passed          int `json:"passed"`
	Failed          int `json:"failed"`
	Flaky           int `json:"flaky"`
	Skipped         int `json:"skipped"`
	StateSyncErrors int `json:"state_sync_errors"`
}

func (n *Counts) add(r Result) {
	n.Total++
	switch r.Status {
	case Passed:
		n.Passed++
	case Failed:
		n.Failed++
	case Flaky:
		n.Flaky++
	case Skipped:
		n.Skipped++
	}
	if r.ErrorKind == KindStateSync {
		n.StateSyncErrors++
	}
}

// EngineSummary is Counts for one engine.
type EngineSummary struct {
	Engine string `json:"engine"`
	Counts
}

// Summary describes the whole run.
type Summary struct {
	RunID    string          `json:"run_id"`
	Started  time.Time       `json:"started"`
	Duration time.Duration   `json:"duration_ns"`
	Engines  []EngineSummary `json:"engines"`
	Counts
}

// OK reports whether nothing failed. Flaky results do not fail a run.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// Summary tallies the results collected so far.
func (c *Collector) Summary() Summary {
	s := Summary{
		RunID:    c.RunID(),
		Started:  c.started,
		Duration: c.now().Sub(c.started),
	}
	byEngine := map[string]*EngineSummary{}
	for _, r := range c.Results() {
		s.add(r)
		es, ok := byEngine[r.Engine]
		if !ok {
			es = &EngineSummary{Engine: r.Engine}
			byEngine[r.Engine] = es
		}
		es.add(r)
	}
	for _, es := range byEngine {
		s.Engines = append(s.Engines, *es)
	}
	slices.SortFunc(s.Engines, func(a, b EngineSummary) int { return strings.Compare(a.Engine, b.Engine) })
	return s
}
