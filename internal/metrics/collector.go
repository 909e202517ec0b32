package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/junctionsim/junction/internal/config"
	"github.com/junctionsim/junction/internal/sim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the admission metrics and the registry they are exposed from.
//
// Metrics:
//   - junction_admissions_total: requests promoted to accepted, by policy
//   - junction_violations_total: protocol violations reported by agents, by operation
//   - junction_waiting_requests / junction_accepted_requests: queue depth per intersection
//   - junction_stop_sign_wait_seconds: time from first submission to admission at stop signs
//   - junction_step_duration_seconds: wall time of one registry step
type Collector struct {
	registry *prometheus.Registry

	admissions   *prometheus.CounterVec
	violations   *prometheus.CounterVec
	waiting      *prometheus.GaugeVec
	accepted     *prometheus.GaugeVec
	stopSignWait prometheus.Histogram
	stepDuration prometheus.Histogram
}

// NewCollector registers the metrics with registry, or with a fresh registry if nil.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "junction"
	}

	c := &Collector{
		registry: registry,
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "admissions_total",
			Help:      "Requests promoted to accepted.",
		}, []string{"policy"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "violations_total",
			Help:      "Protocol violations returned to agents.",
		}, []string{"op"}),
		waiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "waiting_requests",
			Help:      "Requests waiting for admission.",
		}, []string{"intersection"}),
		accepted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "accepted_requests",
			Help:      "Agents currently holding a turn.",
		}, []string{"intersection"}),
		stopSignWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "stop_sign_wait_seconds",
			Help:      "Simulated time between first submission and admission at stop signs.",
			Buckets:   []float64{0, 0.5, 1.5, 3, 5, 10, 30, 60, 120},
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "step_duration_seconds",
			Help:      "Wall time of one admission step over all intersections.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}),
	}

	registry.MustRegister(
		c.admissions,
		c.violations,
		c.waiting,
		c.accepted,
		c.stopSignWait,
		c.stepDuration,
	)
	return c
}

// RecordAdmission counts one promotion.
func (c *Collector) RecordAdmission(a sim.Admission) {
	c.admissions.WithLabelValues(a.Kind.String()).Inc()
	if a.Kind == sim.PolicyStopSign {
		c.stopSignWait.Observe(a.Waited.Seconds())
	}
}

// RecordViolation counts one protocol violation for op ("submit", "enter", "exit").
func (c *Collector) RecordViolation(op string) {
	c.violations.WithLabelValues(op).Inc()
}

// RecordStep observes the wall time of one step.
func (c *Collector) RecordStep(d time.Duration) {
	c.stepDuration.Observe(d.Seconds())
}

// RecordCounts sets the per-intersection queue gauges.
func (c *Collector) RecordCounts(counts []sim.Counts) {
	for i, n := range counts {
		label := strconv.Itoa(i)
		c.waiting.WithLabelValues(label).Set(float64(n.Waiting))
		c.accepted.WithLabelValues(label).Set(float64(n.Accepted))
	}
}

// Handler exposes the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
