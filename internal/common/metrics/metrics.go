// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "support_relay"

var (
	MessagesSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_submitted_total",
			Help:      "Messages persisted by the relay, by sender kind.",
		},
		[]string{"sender_kind"},
	)

	LiveDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_deliveries_total",
			Help:      "Push events handed to live connections.",
		},
	)

	EgressResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_egress_total",
			Help:      "Telegram egress attempts, by result.",
		},
		[]string{"result"},
	)

	OpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Currently open realtime connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(MessagesSubmitted, LiveDeliveries, EgressResults, OpenConnections)
}
