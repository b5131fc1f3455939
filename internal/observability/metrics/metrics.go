// Package metrics provides Prometheus instrumentation for questhub.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	rateLimitedTotal  *prometheus.CounterVec

	// Chain RPC metrics
	rpcRequestsTotal *prometheus.CounterVec
	rpcDuration      *prometheus.HistogramVec

	// Verification engine metrics
	verificationTotal *prometheus.CounterVec

	// Progress metrics
	questCompletionsTotal *prometheus.CounterVec
	stepCompletionsTotal  *prometheus.CounterVec
	xpAwardedTotal        prometheus.Counter
	syncQuestsChecked     prometheus.Histogram
)

// Init initializes the metrics system. It must be called at most once per process.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	constLabels := prometheus.Labels{"service": svcName}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "http_rate_limited_total",
			Help:        "Requests rejected by a rate limit budget",
			ConstLabels: constLabels,
		},
		[]string{"budget"},
	)

	rpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "chain_rpc_requests_total",
			Help:        "Total number of outbound chain RPC calls",
			ConstLabels: constLabels,
		},
		[]string{"chain", "method", "status"},
	)

	// RPC providers are slow on wide log ranges, so buckets go up to 30s.
	rpcDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "chain_rpc_duration_seconds",
			Help:        "Chain RPC latency in seconds",
			Buckets:     []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		},
		[]string{"chain", "method"},
	)

	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "verification_total",
			Help:        "Verification outcomes by deciding tier",
			ConstLabels: constLabels,
		},
		[]string{"tier", "result"},
	)

	questCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "quest_completions_total",
			Help:        "Quest completions recorded",
			ConstLabels: constLabels,
		},
		[]string{"quest"},
	)

	stepCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "quest_step_completions_total",
			Help:        "Quest step completions recorded",
			ConstLabels: constLabels,
		},
		[]string{"quest"},
	)

	xpAwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:        "xp_awarded_total",
			Help:        "Total XP credited to users",
			ConstLabels: constLabels,
		},
	)

	syncQuestsChecked = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "sync_quests_checked",
			Help:        "Number of quests verified per sync request",
			Buckets:     []float64{0, 1, 2, 5, 10, 20, 50},
			ConstLabels: constLabels,
		},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name.
func ServiceName() string {
	return serviceName
}
