// Package metrics provides Prometheus instrumentation for the voiceover relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPAttempts counts outbound HTTP attempts made by the retry executor.
	HTTPAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceover",
		Name:      "http_attempts_total",
		Help:      "Outbound HTTP attempts by target and outcome.",
	}, []string{"target", "outcome"})

	// HTTPCalls counts logical outbound calls by their final result.
	HTTPCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceover",
		Name:      "http_calls_total",
		Help:      "Outbound HTTP calls by target and final result.",
	}, []string{"target", "result"})

	// JobRuns counts job driver runs by outcome.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceover",
		Name:      "job_runs_total",
		Help:      "Remote job runs by outcome.",
	}, []string{"outcome"})

	// JobPolls tracks how many status polls a run needed.
	JobPolls = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "voiceover",
		Name:      "job_polls",
		Help:      "Number of status polls per remote job run.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
	})

	// JobDuration tracks wall-clock time from job creation to result.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "voiceover",
		Name:      "job_duration_seconds",
		Help:      "Duration of remote job runs in seconds.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"outcome"})

	// Deliveries counts delivery sink sends by channel and outcome.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceover",
		Name:      "deliveries_total",
		Help:      "Deliveries by channel (text, voice) and outcome.",
	}, []string{"channel", "outcome"})

	// DeliveriesInFlight tracks deliveries that have not finished yet.
	DeliveriesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voiceover",
		Name:      "deliveries_in_flight",
		Help:      "Number of deliveries currently running.",
	})

	// HTTPRequestsTotal counts inbound HTTP requests by method, path, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceover",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks inbound HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "voiceover",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"method", "path", "status"})

	// ServerInfo exposes static server metadata as labels.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "voiceover",
		Name:      "server_info",
		Help:      "Static server metadata.",
	}, []string{"version", "env"})
)

// Init sets static server metadata on the info metric.
func Init(version, env string) {
	ServerInfo.WithLabelValues(version, env).Set(1)
}
