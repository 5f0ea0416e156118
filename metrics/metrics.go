// Package metrics exposes job and artifact counters in the Prometheus text
// format. Each Collector owns its registry so several servers can live in
// one process, as they do in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bonsai"

// Collector records engine and store activity. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	jobsCreated  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobsInFlight *prometheus.GaugeVec
	jobDuration  *prometheus.HistogramVec
	rejections   *prometheus.CounterVec
}

// New creates a collector with its own registry, including the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_created_total",
			Help:      "Total number of jobs accepted, by kind",
		}, []string{"kind"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs that reached a terminal state",
		}, []string{"kind", "state"}),
		jobsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Current number of running jobs",
		}, []string{"kind"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from start to terminal state",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Requests refused because a limit was hit",
		}, []string{"reason"}),
	}
	c.registry.MustRegister(
		c.jobsCreated,
		c.jobsFinished,
		c.jobsInFlight,
		c.jobDuration,
		c.rejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// WatchArtifacts exports the artifact count and total size reported by
// stats on every scrape.
func (c *Collector) WatchArtifacts(stats func() (int, uint64)) {
	if c == nil {
		return
	}
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts",
			Help:      "Number of stored artifacts",
		}, func() float64 {
			n, _ := stats()
			return float64(n)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts_bytes",
			Help:      "Total size of stored artifacts",
		}, func() float64 {
			_, size := stats()
			return float64(size)
		}),
	)
}

// JobCreated records a job accepted by a registry.
func (c *Collector) JobCreated(kind string) {
	if c == nil {
		return
	}
	c.jobsCreated.WithLabelValues(kind).Inc()
}

// JobStarted records a job moving to running.
func (c *Collector) JobStarted(kind string) {
	if c == nil {
		return
	}
	c.jobsInFlight.WithLabelValues(kind).Inc()
}

// JobFinished records a running job reaching state after d.
func (c *Collector) JobFinished(kind, state string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobsInFlight.WithLabelValues(kind).Dec()
	c.jobsFinished.WithLabelValues(kind, state).Inc()
	c.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Rejected records a request refused for reason, such as "queue_full".
func (c *Collector) Rejected(reason string) {
	if c == nil {
		return
	}
	c.rejections.WithLabelValues(reason).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
