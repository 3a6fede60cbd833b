// Package metrics exposes task run counters and latencies for prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toastate/toastpipe/internal/runner"
)

// Recorder owns a private registry so several runners (and tests) never
// collide on the default one.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	lastSuccess  *prometheus.GaugeVec
}

func New() *Recorder {
	m := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toastpipe_task_runs_total",
				Help: "Total number of executed task bodies.",
			},
			[]string{"task", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toastpipe_task_duration_seconds",
				Help:    "Task body durations in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toastpipe_task_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run of a task.",
			},
			[]string{"task"},
		),
	}
	m.registry.MustRegister(m.runsTotal, m.taskDuration, m.lastSuccess)
	return m
}

// Observe records one finished task body.
func (m *Recorder) Observe(res runner.Result) {
	status := "success"
	if res.Err != nil {
		status = "failure"
	}
	m.runsTotal.WithLabelValues(res.Task, status).Inc()
	m.taskDuration.WithLabelValues(res.Task).Observe(res.Duration.Seconds())
	if res.Err == nil {
		m.lastSuccess.WithLabelValues(res.Task).SetToCurrentTime()
	}
}

// Attach feeds every task executed by r into m.
func (m *Recorder) Attach(r *runner.Runner) {
	r.OnFinish(m.Observe)
}

func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})
}

// Registry holds only the task collectors of m.
func (m *Recorder) Registry() *prometheus.Registry {
	return m.registry
}
