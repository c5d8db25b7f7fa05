package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_outcomes_total",
		Help: "Login and refresh attempts by outcome",
	},
	[]string{"operation", "outcome"},
)

func recordOutcome(operation, outcome string) {
	authOutcomes.WithLabelValues(operation, outcome).Inc()
}
