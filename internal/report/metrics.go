package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/afero"
)

// Metrics holds the run's prometheus series on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	scenarios  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	attempts   *prometheus.CounterVec
	syncErrors *prometheus.CounterVec
}

// NewMetrics registers the pagecheck series on a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecheck_scenarios_total",
			Help: "Scenarios finished, by engine and final status.",
		}, []string{"engine", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagecheck_scenario_duration_seconds",
			Help:    "Wall time of a scenario across all its attempts.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"engine"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecheck_attempts_total",
			Help: "Scenario attempts, including retries.",
		}, []string{"engine"}),
		syncErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagecheck_state_sync_errors_total",
			Help: "Scenarios failed because the checked property and attribute disagreed.",
		}, []string{"engine"}),
	}
}

// Registry exposes the registry for scraping or tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one result.
func (m *Metrics) Observe(r Result) {
	m.scenarios.WithLabelValues(r.Engine, string(r.Status)).Inc()
	m.duration.WithLabelValues(r.Engine).Observe(r.Duration.Seconds())
	m.attempts.WithLabelValues(r.Engine).Add(float64(r.Attempts))
	if r.ErrorKind == KindStateSync {
		m.syncErrors.WithLabelValues(r.Engine).Inc()
	}
}

// WriteTextfile writes every series in the text exposition format, through a
// temporary file and a rename so a collector never reads a partial file.
func (m *Metrics) WriteTextfile(fs afero.Fs, path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
