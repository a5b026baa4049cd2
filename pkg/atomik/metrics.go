package atomik

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// graphMetrics holds the Prometheus metrics for one graph.
// Nil when no registerer was configured; every call site guards for that.
type graphMetrics struct {
	waves          prometheus.Counter
	recomputes     prometheus.Counter
	notifications  prometheus.Counter
	callbackErrors prometheus.Counter
	waveDuration   prometheus.Histogram
	queueDepth     prometheus.Gauge
}

// newGraphMetrics registers the graph metrics on reg under the "atomik"
// namespace.
func newGraphMetrics(reg prometheus.Registerer) *graphMetrics {
	factory := promauto.With(reg)
	return &graphMetrics{
		waves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "atomik",
			Name:      "waves_total",
			Help:      "Propagation waves committed.",
		}),
		recomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "atomik",
			Name:      "recomputes_total",
			Help:      "Derived node recomputations performed.",
		}),
		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "atomik",
			Name:      "notifications_total",
			Help:      "Subscriber callbacks invoked.",
		}),
		callbackErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "atomik",
			Name:      "callback_errors_total",
			Help:      "Subscriber callbacks that panicked during dispatch.",
		}),
		waveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "atomik",
			Name:      "wave_duration_seconds",
			Help:      "Time to settle one propagation wave.",
			Buckets:   prometheus.DefBuckets,
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "atomik",
			Name:      "async_queue_depth",
			Help:      "Deferred mutations queued across worker lanes.",
		}),
	}
}
