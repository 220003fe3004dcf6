// server/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LiveQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "memo",
		Name:      "live_queries",
		Help:      "Open live query registrations.",
	})

	Batches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memo",
		Name:      "live_query_batches_total",
		Help:      "Change batches delivered to live query handlers, by result.",
	}, []string{"result"})

	Changes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memo",
		Name:      "live_query_changes_total",
		Help:      "Document changes delivered, by kind.",
	}, []string{"kind"})

	ProjectorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memo",
		Name:      "projector_events_total",
		Help:      "List mutation events raised by projectors, by event.",
	}, []string{"event"})

	StaleBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memo",
		Name:      "projector_stale_batches_total",
		Help:      "Batches dropped because their subscription was no longer current.",
	})

	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "memo",
		Name:      "ws_sessions",
		Help:      "Connected websocket sessions.",
	})
)
