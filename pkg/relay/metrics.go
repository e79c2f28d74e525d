package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	rooms        prometheus.GaugeFunc
	participants prometheus.Gauge
	relayed      *prometheus.CounterVec
	drops        prometheus.Counter
}

// newMetrics registers the relay collectors with reg. Tests pass their
// own registry so repeated hubs don't collide on registration.
func newMetrics(registry *Registry, reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		rooms: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "meetup",
			Name:      "rooms_active",
			Help:      "Number of live rooms.",
		}, func() float64 { return float64(registry.Size()) }),
		participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "meetup",
			Name:      "participants_connected",
			Help:      "Number of joined participants.",
		}),
		relayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetup",
			Name:      "messages_relayed_total",
			Help:      "Messages relayed, by protocol event.",
		}, []string{"event"}),
		drops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meetup",
			Name:      "routing_drops_total",
			Help:      "Point-to-point messages dropped because the target was gone.",
		}),
	}
}
