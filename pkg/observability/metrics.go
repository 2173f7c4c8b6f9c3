// Package observability provides Prometheus metrics and HTTP middleware
// for the askstream MCP server.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunBuckets covers search latencies from a quick answer (~1s) up to a
// long deep research run.
var RunBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

var (
	// HTTPRequestsTotal counts HTTP requests by method and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askstream_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askstream_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: RunBuckets,
		},
		[]string{"method"},
	)

	// RunsActive tracks query runs currently streaming.
	RunsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askstream_runs_active",
			Help: "Query runs in flight",
		},
	)

	// RunsTotal counts finished runs by tier and outcome. The outcome is
	// "completed" or the error kind that ended the run.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askstream_runs_total",
			Help: "Finished query runs",
		},
		[]string{"tier", "outcome"},
	)

	// RunDuration records end-to-end run latency by tier.
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askstream_run_duration_seconds",
			Help:    "Query run duration",
			Buckets: RunBuckets,
		},
		[]string{"tier"},
	)

	// StreamEventsTotal counts decoded backend events by kind.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askstream_stream_events_total",
			Help: "Decoded stream events",
		},
		[]string{"kind"},
	)

	// ToolCallsTotal counts MCP tool invocations by tool and status.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askstream_tool_calls_total",
			Help: "MCP tool calls",
		},
		[]string{"tool", "status"},
	)

	// AuthRejectedTotal counts inbound requests rejected by authentication
	// or rate limiting.
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askstream_auth_rejected_total",
			Help: "Rejected inbound requests",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RunsActive,
		RunsTotal,
		RunDuration,
		StreamEventsTotal,
		ToolCallsTotal,
		AuthRejectedTotal,
	)
}

// ObserveRun records the outcome and latency of one finished run.
func ObserveRun(tier, outcome string, elapsed time.Duration) {
	RunsTotal.WithLabelValues(tier, outcome).Inc()
	RunDuration.WithLabelValues(tier).Observe(elapsed.Seconds())
}
