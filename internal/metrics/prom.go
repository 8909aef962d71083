package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "agentbridge_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"component": "server"},
		},
		[]string{"date", "sha", "version"},
	)

	turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_turns_total",
			Help: "Conversation turns by outcome",
		},
		[]string{"outcome"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentbridge_turn_duration_seconds",
			Help:    "Wall time of a conversation turn",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	turnsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentbridge_turns_inflight",
			Help: "Conversation turns currently in progress",
		},
	)

	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_rpc_calls_total",
			Help: "Tool calls requested by the agent, by method and JSON-RPC error code (0 on success)",
		},
		[]string{"method", "code"},
	)

	envelopes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_envelopes_total",
			Help: "Envelopes exchanged with the agent",
		},
		[]string{"direction", "type"},
	)

	discarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentbridge_discarded_frames_total",
			Help: "Inbound frames dropped as unparseable or unexpected",
		},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, turns, turnDuration, turnsInflight, rpcCalls, envelopes, discarded)
}

// SetServerBuildInfo sets the build info metric for the server.
func SetServerBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// TurnStart increments the in-flight turn gauge.
func TurnStart() { turnsInflight.Inc() }

// TurnEnd decrements the in-flight gauge and records the outcome.
func TurnEnd(outcome string, d time.Duration) {
	turnsInflight.Dec()
	turns.WithLabelValues(outcome).Inc()
	turnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordRPCCall counts one dispatched tool call. code is 0 on success.
func RecordRPCCall(method string, code int) {
	rpcCalls.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// RecordEnvelope counts one envelope in the given direction.
func RecordEnvelope(direction, typ string) {
	envelopes.WithLabelValues(direction, typ).Inc()
}

// RecordDiscarded counts a dropped inbound frame.
func RecordDiscarded() { discarded.Inc() }
