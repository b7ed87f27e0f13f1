package echo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exported by the echo server
type Metrics struct {
	ConnectionsTotal  prometheus.Counter
	ActiveConnections prometheus.Gauge
	MessagesEchoed    prometheus.Counter
	BytesEchoed       prometheus.Counter
	MessagesDropped   prometheus.Counter
}

// NewMetrics creates and registers the echo server collectors.
// Passing a fresh registry keeps tests isolated from each other.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsecho",
			Name:      "connections_total",
			Help:      "Total number of WebSocket connections accepted.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wsecho",
			Name:      "active_connections",
			Help:      "Number of currently open WebSocket connections.",
		}),
		MessagesEchoed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsecho",
			Name:      "messages_echoed_total",
			Help:      "Total number of text messages echoed back to clients.",
		}),
		BytesEchoed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsecho",
			Name:      "bytes_echoed_total",
			Help:      "Total payload bytes echoed back to clients.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsecho",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped by rate limiting or full send buffers.",
		}),
	}

	reg.MustRegister(
		m.ConnectionsTotal,
		m.ActiveConnections,
		m.MessagesEchoed,
		m.BytesEchoed,
		m.MessagesDropped,
	)
	return m
}
