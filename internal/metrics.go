package internal

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the counters the board exposes on /metrics. Broadcast is
// best-effort, so dropped sends never fail a request; this is where they
// stay observable.
type Metrics struct {
	registry *prometheus.Registry

	ContentOps        *prometheus.CounterVec
	BroadcastEvents   *prometheus.CounterVec
	DroppedSends      prometheus.Counter
	ActiveConnections prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ContentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shareboard_content_operations_total",
			Help: "Content store mutations by operation.",
		}, []string{"op"}),
		BroadcastEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shareboard_broadcast_events_total",
			Help: "Events published to the broadcast channel by type.",
		}, []string{"type"}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shareboard_dropped_sends_total",
			Help: "Connections dropped because their send buffer was full.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shareboard_active_connections",
			Help: "Currently registered websocket connections.",
		}),
	}
	m.registry.MustRegister(m.ContentOps, m.BroadcastEvents, m.DroppedSends, m.ActiveConnections)
	return m
}

// Registry returns the dedicated registry backing /metrics. Each server
// instance owns its own so tests can spin up several side by side.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
