// Package metrics holds the prometheus collectors of the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomchat",
		Name:      "sessions_active",
		Help:      "Connections currently served by a session handler.",
	})

	MembersJoined = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomchat",
		Name:      "members_registered",
		Help:      "Connections currently recorded in the registry.",
	})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "events_received_total",
		Help:      "Inbound events by type.",
	}, []string{"type"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomchat",
		Name:      "deliveries_total",
		Help:      "Broadcast deliveries by outcome.",
	}, []string{"outcome"})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
