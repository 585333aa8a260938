package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicechat_http_request_duration_seconds",
			Help:    "Duration of HTTP request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	ChatOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_chat_outcomes_total",
			Help: "Chat orchestrations by terminal state",
		},
		[]string{"outcome"},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_search_requests_total",
			Help: "Web searches by provider and status (ok, degraded)",
		},
		[]string{"provider", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicechat_upstream_duration_seconds",
			Help:    "Duration of outbound calls to third-party services",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_upstream_errors_total",
			Help: "Failed outbound calls to third-party services",
		},
		[]string{"operation"},
	)
)

// Chat outcome labels.
const (
	OutcomeDirect   = "direct_answer"
	OutcomeSearched = "tool_answer"
	OutcomeInvalid  = "invalid_input"
	OutcomeFailed   = "failed"
)

// ObserveUpstream records the duration of an outbound call started at start
// and counts it as an error when err is non-nil.
func ObserveUpstream(operation string, start time.Time, err error) {
	UpstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		UpstreamErrors.WithLabelValues(operation).Inc()
	}
}
