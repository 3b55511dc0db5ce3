// Package metrics exposes discovery and review activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// Collector implements inference.Metrics and engine.Metrics.
type Collector struct {
	registry          *prometheus.Registry
	InferenceDuration *prometheus.HistogramVec
	InferenceTotal    *prometheus.CounterVec
	WebSearchTotal    *prometheus.CounterVec
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	DiscoveriesTotal  prometheus.Counter
	ValidationsTotal  *prometheus.CounterVec
}

// New creates a collector registered on its own registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	c := &Collector{
		registry: reg,
		InferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finance_inference_duration_seconds",
				Help:    "Merchant inference duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"path"},
		),
		InferenceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finance_inference_total",
				Help: "Total merchant inferences by path and status",
			},
			[]string{"path", "status"},
		),
		WebSearchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finance_web_search_total",
				Help: "Total web search escalations by outcome",
			},
			[]string{"outcome"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finance_discovery_runs_total",
				Help: "Total discovery runs by final stage",
			},
			[]string{"stage"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finance_discovery_run_duration_seconds",
				Help:    "Discovery run duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		DiscoveriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "finance_discoveries_created_total",
				Help: "Total merchant discoveries created",
			},
		),
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finance_validations_total",
				Help: "Total review verdicts by action",
			},
			[]string{"action"},
		),
	}

	reg.MustRegister(
		c.InferenceDuration,
		c.InferenceTotal,
		c.WebSearchTotal,
		c.RunsTotal,
		c.RunDuration,
		c.DiscoveriesTotal,
		c.ValidationsTotal,
	)
	return c
}

// InferenceCompleted records one finished inference.
func (c *Collector) InferenceCompleted(path string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.InferenceDuration.WithLabelValues(path).Observe(elapsed.Seconds())
	c.InferenceTotal.WithLabelValues(path, status).Inc()
}

// SearchPerformed records one web search escalation.
func (c *Collector) SearchPerformed(outcome string) {
	c.WebSearchTotal.WithLabelValues(outcome).Inc()
}

// RunFinished records one discovery run.
func (c *Collector) RunFinished(stage model.Stage, created int, elapsed time.Duration) {
	c.RunsTotal.WithLabelValues(string(stage)).Inc()
	c.RunDuration.Observe(elapsed.Seconds())
	c.DiscoveriesTotal.Add(float64(created))
}

// ValidationRecorded records one review verdict.
func (c *Collector) ValidationRecorded(action string) {
	c.ValidationsTotal.WithLabelValues(action).Inc()
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
