package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the push-layer instruments. They are registered against an
// injected registerer so tests can use isolated registries.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	Subscriptions     prometheus.Gauge
	BroadcastsTotal   prometheus.Counter
	DeliveredTotal    prometheus.Counter
	DroppedTotal      prometheus.Counter
	HeartbeatsTotal   prometheus.Counter
}

// NewMetrics registers and returns the push metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "souq_push_active_connections", Help: "Live push connections.",
		}),
		Subscriptions: f.NewGauge(prometheus.GaugeOpts{
			Name: "souq_push_subscriptions", Help: "Live conversation subscriptions.",
		}),
		BroadcastsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "souq_push_broadcasts_total", Help: "Broadcast calls.",
		}),
		DeliveredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "souq_push_delivered_total", Help: "Events delivered into connection queues.",
		}),
		DroppedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "souq_push_dropped_total", Help: "Events dropped due to dead or saturated connections.",
		}),
		HeartbeatsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "souq_push_heartbeats_total", Help: "Heartbeat events enqueued.",
		}),
	}
}
