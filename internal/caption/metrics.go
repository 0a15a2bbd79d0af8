package caption

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRequests = "caption_requests_total"
	MetricFailures = "caption_failures_total"
	MetricLatency  = "caption_latency_seconds"
)

// Metrics contains Prometheus metrics for the captioning adapter.
// All operations are thread-safe.
type Metrics struct {
	requests prometheus.Counter
	failures prometheus.Counter
	latency  prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRequests,
			Help: "Total number of caption service calls",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFailures,
			Help: "Total number of caption service calls that fell back",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricLatency,
			Help:    "Histogram of caption service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.requests,
		m.failures,
		m.latency,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRequests increments the caption request counter.
func (m *Metrics) IncRequests() {
	m.requests.Inc()
}

// IncFailures increments the caption failure counter.
func (m *Metrics) IncFailures() {
	m.failures.Inc()
}

// ObserveLatency records a caption call latency sample.
func (m *Metrics) ObserveLatency(seconds float64) {
	m.latency.Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.failures,
		m.latency,
	}
}
