package events

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsLoggedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_events_logged_total",
			Help: "Count of recommendation events logged by event_type and scene.",
		},
		[]string{"event_type", "scene"},
	)
)

func init() {
	prometheus.MustRegister(EventsLoggedTotal)
}
