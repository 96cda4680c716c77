package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "socialapp_gateway_active_connections",
			Help: "Currently open websocket connections",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socialapp_gateway_auth_failures_total",
			Help: "Handshakes refused for bad credentials",
		},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialapp_gateway_events_total",
			Help: "Inbound events by name",
		},
		[]string{"event"},
	)

	MessagesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialapp_gateway_messages_routed_total",
			Help: "Messages appended and fanned out, by conversation kind",
		},
		[]string{"kind"}, // "direct" or "group"
	)

	ErrorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialapp_gateway_error_events_total",
			Help: "Non-fatal error events emitted to clients, by failed operation",
		},
		[]string{"type"},
	)
)
