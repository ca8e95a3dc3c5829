// Package metrics exposes pipeline counters on a dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

const namespace = "news_digest"

// Metrics records pipeline outcomes.
type Metrics struct {
	registry *prometheus.Registry

	// candidates counts terminal candidate outcomes.
	// Labels: category, outcome (stored_llm, stored_extractive, rejected, fetch_failed, duplicate, store_failed)
	candidates *prometheus.CounterVec

	// extractions counts which extractor stage produced the accepted text.
	// Labels: method
	extractions *prometheus.CounterVec

	// stageDuration measures per-candidate stage latency.
	// Labels: stage (fetch, extract, summarize, persist)
	stageDuration *prometheus.HistogramVec

	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
	swept        prometheus.Counter
	storedTotal  prometheus.Gauge
	sweepFailure prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "candidates_total",
			Help:      "Candidates by category and terminal outcome",
		}, []string{"category", "outcome"}),
		extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "accepted_total",
			Help:      "Accepted extractions by extractor stage",
		}, []string{"method"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Per-candidate stage latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of complete runs",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		swept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "deleted_total",
			Help:      "Records removed by retention sweeps",
		}),
		sweepFailure: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "failures_total",
			Help:      "Retention sweeps that returned an error",
		}),
		storedTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "articles",
			Help:      "Articles in the store after the last run",
		}),
	}
}

// Outcome counts one candidate outcome.
func (m *Metrics) Outcome(category domain.Category, o domain.Outcome) {
	m.candidates.WithLabelValues(string(category), string(o)).Inc()
}

// Extraction counts the stage that produced an accepted text.
func (m *Metrics) Extraction(method domain.ExtractionMethod) {
	m.extractions.WithLabelValues(string(method)).Inc()
}

// StageDuration observes one stage latency.
func (m *Metrics) StageDuration(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Run records the aggregate of a finished run.
func (m *Metrics) Run(report domain.RunReport) {
	m.runDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	m.lastRun.Set(float64(report.FinishedAt.Unix()))
	m.Sweep(report.Deleted, report.SweepError != "")
	m.storedTotal.Set(float64(report.Totals.TotalArticles))
}

// Sweep records a retention sweep result.
func (m *Metrics) Sweep(deleted int, failed bool) {
	if failed {
		m.sweepFailure.Inc()
		return
	}
	m.swept.Add(float64(deleted))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
