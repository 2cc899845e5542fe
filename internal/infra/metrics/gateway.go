package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(gatewayCallsLatencyMs, gatewayShortCircuits, gatewayRetriesTotal, idempotencyReplaysTotal)
}

var (
	gatewayCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_gateway_call_latency_ms",
			Help:    "Provider call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000, 300000},
		},
		[]string{"provider", "category", "success"},
	)

	gatewayShortCircuits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_gateway_short_circuits_total",
			Help: "Calls rejected without a network attempt because the circuit was open.",
		},
		[]string{"provider"},
	)

	gatewayRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_gateway_retries_total",
			Help: "Transient-error retries per provider.",
		},
		[]string{"provider"},
	)

	idempotencyReplaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_idempotency_replays_total",
			Help: "Calls answered from the idempotency store without invoking the provider.",
		},
		[]string{"provider"},
	)
)

func ObserveGatewayCall(provider, category string, latencyMs int, success bool) {
	gatewayCallsLatencyMs.
		WithLabelValues(norm(provider), norm(category), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncShortCircuit(provider string)      { gatewayShortCircuits.WithLabelValues(norm(provider)).Inc() }
func IncGatewayRetry(provider string)      { gatewayRetriesTotal.WithLabelValues(norm(provider)).Inc() }
func IncIdempotentReplay(provider string)  { idempotencyReplaysTotal.WithLabelValues(norm(provider)).Inc() }
