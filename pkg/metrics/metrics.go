package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private so tests and multiple servers never collide with the default one.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		RPCCalls,
		ToolDuration,
		DecisionRounds,
		Evaluations,
	)
}

// RPCCalls counts remote invocations by service, operation and outcome.
var RPCCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "parcel_scout_rpc_calls_total",
		Help: "Remote operation invocations.",
	},
	[]string{"service", "operation", "outcome"}, // success | error
)

var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "parcel_scout_tool_duration_seconds",
		Help:    "Tool adapter execution time in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool", "outcome"},
)

var DecisionRounds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "parcel_scout_decision_rounds",
		Help:    "Decision rounds needed before an agent loop terminated.",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	},
	[]string{"agent"},
)

var Evaluations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "parcel_scout_evaluations_total",
		Help: "Aggregated property evaluations by recommendation tier.",
	},
	[]string{"recommendation"},
)

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
