package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsRelayed counts frames fanned out or unicast, by event kind.
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codewithpair_events_relayed_total",
		Help: "Relay events delivered, labelled by event kind.",
	}, []string{"event"})

	// EventsDropped counts inbound events discarded before delivery.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codewithpair_events_dropped_total",
		Help: "Inbound events dropped, labelled by reason.",
	}, []string{"reason"})

	// OpenConnections tracks live websocket connections on this instance.
	OpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codewithpair_open_connections",
		Help: "Currently open websocket connections.",
	})

	// ActiveRooms tracks rooms with at least one member on this instance.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codewithpair_active_rooms",
		Help: "Rooms with at least one local member.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
