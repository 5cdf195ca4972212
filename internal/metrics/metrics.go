// Package metrics provides Prometheus metrics for slot runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"LandingArticles/internal/domain"
	"LandingArticles/internal/ports"
)

const namespace = "landing_articles"

// Recorder counts run outcomes and issues on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	attempts prometheus.Histogram
	issues   *prometheus.CounterVec
	lastFill prometheus.Gauge
}

var _ ports.RunObserver = (*Recorder)(nil)

// NewRecorder registers the run metrics plus Go and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slot_runs_total",
				Help:      "Slot runs by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "slot_run_duration_seconds",
				Help:      "Wall time of slot runs",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"trigger"},
		),
		attempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "slot_run_attempts",
				Help:      "Extraction attempts per slot run",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),
		issues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "run_issues_total",
				Help:      "Recovered problems by kind",
			},
			[]string{"kind"},
		),
		lastFill: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_committed_timestamp_seconds",
				Help:      "Unix time of the last committed article",
			},
		),
	}
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(report domain.RunReport) {
	r.runs.WithLabelValues(report.Trigger, string(report.Outcome)).Inc()
	r.duration.WithLabelValues(report.Trigger).Observe(report.Duration().Seconds())
	r.attempts.Observe(float64(report.Attempts))
	for _, issue := range report.Issues {
		r.issues.WithLabelValues(string(issue.Kind)).Inc()
	}
	if report.Outcome == domain.OutcomeCommitted && !report.FinishedAt.IsZero() {
		r.lastFill.Set(float64(report.FinishedAt.Unix()))
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
