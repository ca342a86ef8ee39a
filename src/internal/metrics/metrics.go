// FILE: muxd/src/internal/metrics/metrics.go

// Package metrics holds the process-wide prometheus collectors of muxd.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muxd_events_total",
			Help: "Lifecycle events dispatched to kernel handlers by listener and event",
		},
		[]string{"listener", "event"},
	)

	signalOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muxd_signal_outcomes_total",
			Help: "Outcomes of control signals sent to other processes",
		},
		[]string{"signal", "outcome"},
	)

	engineStarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "muxd_engine_starts_total",
			Help: "Engines allocated by server start",
		},
	)
)

// RecordEvent counts one handler dispatch
func RecordEvent(listener, event string) {
	eventsDispatched.WithLabelValues(listener, event).Inc()
}

// RecordSignal counts the outcome of one signal operation
func RecordSignal(signal, outcome string) {
	signalOutcomes.WithLabelValues(signal, outcome).Inc()
}

// RecordEngineStart counts one engine allocation
func RecordEngineStart() {
	engineStarts.Inc()
}

// Handler exposes the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
