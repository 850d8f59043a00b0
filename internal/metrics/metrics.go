package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestTotal counts the total number of HTTP requests
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestInFlight tracks the number of in-flight HTTP requests
	HTTPRequestInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// RunsSubmitted counts accepted run submissions
	RunsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wes_runs_submitted_total",
			Help: "Total number of workflow runs submitted",
		},
	)

	// RunsCompleted counts runs that reached a terminal state
	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_runs_completed_total",
			Help: "Total number of workflow runs that reached a terminal state",
		},
		[]string{"state"},
	)

	// RunFailures counts failed runs by error category
	RunFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_run_failures_total",
			Help: "Total number of failed workflow runs by error category",
		},
		[]string{"category"},
	)

	// RunsActive tracks runs between submission and their terminal state
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wes_runs_active",
			Help: "Number of workflow runs that have not reached a terminal state",
		},
	)

	// LaunchDuration tracks how long the engine takes to acknowledge a launch
	LaunchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wes_run_launch_duration_seconds",
			Help:    "Time from submission until the engine acknowledged the launch",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"runtime"},
	)
)
