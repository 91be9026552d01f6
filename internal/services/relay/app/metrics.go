package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/parlorchat/parlor/internal/chat"
)

// relayMetrics owns the service's Prometheus collectors. Each handler gets
// its own registry so tests can build handlers independently.
type relayMetrics struct {
	registry *prometheus.Registry

	joins       prometheus.Counter
	messages    prometheus.Counter
	disconnects prometheus.Counter
	roomsReaped prometheus.Counter
}

func newRelayMetrics(rooms *chat.Registry, sessions *chat.SessionTable) *relayMetrics {
	registry := prometheus.NewRegistry()
	m := &relayMetrics{
		registry: registry,
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_joins_total",
			Help: "Successful room joins.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Chat messages accepted and broadcast.",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_disconnects_total",
			Help: "WebSocket connections closed.",
		}),
		roomsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_rooms_reaped_total",
			Help: "Idle empty rooms removed by the reaper.",
		}),
	}
	registry.MustRegister(
		m.joins,
		m.messages,
		m.disconnects,
		m.roomsReaped,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relay_active_rooms",
			Help: "Rooms currently held in memory.",
		}, func() float64 { return float64(rooms.Count()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Connections currently bound to a room.",
		}, func() float64 { return float64(sessions.Count()) }),
	)
	return m
}
