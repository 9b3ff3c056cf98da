package experiment

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ExperimentAssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiment_assignments_total",
			Help: "Count of experiment group assignments by experiment and group name.",
		},
		[]string{"experiment", "group"},
	)
)

func init() {
	prometheus.MustRegister(ExperimentAssignmentsTotal)
}
