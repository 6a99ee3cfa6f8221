// Package metrics exposes live run figures to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/studiowebux/trackload/internal/types"
)

// Recorder mirrors samples, checks and iterations into Prometheus
// collectors. It implements types.Recorder and the driver's iteration
// observer.
type Recorder struct {
	registry   *prometheus.Registry
	duration   *prometheus.HistogramVec
	requests   *prometheus.CounterVec
	failed     *prometheus.CounterVec
	checks     *prometheus.CounterVec
	iterations *prometheus.CounterVec
	dropped    *prometheus.CounterVec
}

// NewRecorder registers the run collectors on a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_req_duration_seconds",
			Help:    "Duration of tracker API calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"scenario", "name", "method"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_reqs_total",
			Help: "The total number of tracker API calls",
		}, []string{"scenario", "name", "status"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_req_failed_total",
			Help: "The total number of failed tracker API calls",
		}, []string{"scenario", "name"}),
		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checks_total",
			Help: "The total number of check evaluations",
		}, []string{"scenario", "check", "result"}), // result: pass, fail
		iterations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iterations_total",
			Help: "The total number of started scenario iterations",
		}, []string{"scenario"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dropped_iterations_total",
			Help: "The total number of iterations skipped for lack of a free VU",
		}, []string{"scenario"}),
	}
}

// Registry returns the registry the collectors live on
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Sample(s types.Sample) {
	r.duration.WithLabelValues(s.Scenario, s.Name, s.Method).Observe(float64(s.DurationMs) / 1000)
	r.requests.WithLabelValues(s.Scenario, s.Name, strconv.Itoa(s.StatusCode)).Inc()
	if s.Failed {
		r.failed.WithLabelValues(s.Scenario, s.Name).Inc()
	}
}

func (r *Recorder) Check(c types.CheckResult) {
	result := "fail"
	if c.Passed {
		result = "pass"
	}
	r.checks.WithLabelValues(c.Scenario, c.Name, result).Inc()
}

func (r *Recorder) IterationStarted(scenario string) {
	r.iterations.WithLabelValues(scenario).Inc()
}

func (r *Recorder) IterationDropped(scenario string) {
	r.dropped.WithLabelValues(scenario).Inc()
}
