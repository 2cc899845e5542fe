package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(circuitTransitionsTotal, stallSuspectedTotal)
}

var (
	circuitTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_circuit_transitions_total",
			Help: "Circuit breaker state transitions per provider.",
		},
		[]string{"provider", "to"},
	)

	stallSuspectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_stall_suspected_total",
			Help: "Stall suspicion events raised per provider.",
		},
		[]string{"provider"},
	)
)

func IncCircuitTransition(provider, to string) {
	circuitTransitionsTotal.WithLabelValues(norm(provider), norm(to)).Inc()
}

func IncStallSuspected(provider string) {
	stallSuspectedTotal.WithLabelValues(norm(provider)).Inc()
}
