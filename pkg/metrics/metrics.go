// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ParseResultsTotal counts parsed transcripts by the tier that produced them.
	ParseResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_parse_results_total",
			Help: "Parsed transcripts by resulting format",
		},
		[]string{"format"},
	)

	// ParsedMessages tracks how many messages each transcript produced.
	ParsedMessages = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcript_parsed_messages",
			Help:    "Messages extracted per transcript",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		},
		[]string{"format"},
	)

	// ConversationsTotal tracks stored conversation records.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversation records stored",
		},
	)

	// SubmissionsRejected counts submissions refused before parsing.
	SubmissionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_rejected_total",
			Help: "Submissions rejected before parsing",
		},
		[]string{"reason"},
	)

	// RateLimitedTotal counts requests refused by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// IDAllocationAttempts tracks how many candidates an allocation needed.
	IDAllocationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "id_allocation_attempts",
			Help:    "Candidate identifiers generated per allocation",
			Buckets: []float64{1, 2, 3, 5, 10},
		},
	)

	// StoreOperationDuration tracks key/value store latency.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Key/value store operation duration",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "operation", "status"},
	)

	// EventsPublished counts conversation events sent to JetStream.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Conversation events published",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordParse records the outcome of one cascade run.
func RecordParse(format string, messages int) {
	ParseResultsTotal.WithLabelValues(format).Inc()
	ParsedMessages.WithLabelValues(format).Observe(float64(messages))
}

// RecordStoreOperation records one store call.
func RecordStoreOperation(backend, operation string, err error, duration float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOperationDuration.WithLabelValues(backend, operation, status).Observe(duration)
}
