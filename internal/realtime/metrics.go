package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus instrumentation for the hub and pulse
// aggregator, replacing the teacher's hand-rolled Counter/Gauge types
// (observability/metrics.go) with the standard client_golang registry.
type Metrics struct {
	EventsPublished   *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	SubscriberCount   prometheus.Gauge
	PulseDuration     prometheus.Histogram
	PulseDegradations *prometheus.CounterVec
}

// NewMetrics registers the core's realtime metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "core_realtime_events_published_total",
			Help: "Realtime events published to the broadcast hub, by event type.",
		}, []string{"event_type"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "core_realtime_events_dropped_total",
			Help: "Realtime events dropped because a subscriber's buffer was full.",
		}, []string{"event_type"}),
		SubscriberCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "core_realtime_subscribers",
			Help: "Current number of connected realtime subscribers.",
		}),
		PulseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "core_pulse_duration_ms",
			Help:    "Pulse snapshot compute duration in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 75, 100, 150, 250, 500},
		}),
		PulseDegradations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "core_pulse_subquery_degradations_total",
			Help: "Pulse sub-queries that panicked and degraded to a zero value.",
		}, []string{"subquery"}),
	}
}
