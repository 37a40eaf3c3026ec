package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsLabelClass   = "class"
	metricsLabelOutcome = "outcome"

	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

// MetricsCollector holds the Prometheus collectors for admission decisions.
type MetricsCollector struct {
	Decisions   *prometheus.CounterVec
	StoreErrors *prometheus.CounterVec
	Swept       prometheus.Counter
}

// NewMetricsCollector creates collectors under the given namespace.
func NewMetricsCollector(namespace string) *MetricsCollector {
	return &MetricsCollector{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Number of rate limit decisions by endpoint class and outcome.",
			},
			[]string{metricsLabelClass, metricsLabelOutcome},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_store_errors_total",
				Help:      "Number of failed counter store operations; requests fail open.",
			},
			[]string{metricsLabelClass},
		),
		Swept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_swept_records_total",
				Help:      "Number of expired counter records removed by garbage collection.",
			},
		),
	}
}

// MustRegister registers all collectors and panics on error.
func (c *MetricsCollector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.Decisions, c.StoreErrors, c.Swept)
}

// Unregister removes the collectors from reg.
func (c *MetricsCollector) Unregister(reg prometheus.Registerer) {
	reg.Unregister(c.Decisions)
	reg.Unregister(c.StoreErrors)
	reg.Unregister(c.Swept)
}

func (c *MetricsCollector) observeDecision(class EndpointClass, d Decision) {
	if c == nil {
		return
	}
	outcome := outcomeDenied
	if d.Allowed {
		outcome = outcomeAllowed
	}
	c.Decisions.WithLabelValues(string(class), outcome).Inc()
}

func (c *MetricsCollector) observeError(class EndpointClass) {
	if c == nil {
		return
	}
	c.StoreErrors.WithLabelValues(string(class)).Inc()
	c.Decisions.WithLabelValues(string(class), outcomeError).Inc()
}

func (c *MetricsCollector) observeSwept(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Swept.Add(float64(n))
}
