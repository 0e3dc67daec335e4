package server

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/packdim/internal/estimate"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packdim_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packdim_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Estimation metrics
	estimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packdim_estimates_total",
			Help: "Total number of dimension estimates",
		},
		[]string{"source", "status"}, // source: job, direct, batch, websocket
	)

	estimateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packdim_estimate_duration_seconds",
			Help:    "Estimate processing duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	resolvedAxes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "packdim_resolved_axes",
			Help:    "Number of axes resolved per estimate",
			Buckets: []float64{0, 1, 2, 3, 4},
		},
	)

	mappingWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packdim_mapping_warnings_total",
			Help: "Total number of mapping warnings by kind",
		},
		[]string{"kind"}, // kind: conflict, missing_required, geometry_fallback
	)

	// Job metrics
	jobsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "packdim_jobs_stored",
			Help: "Number of jobs held by the job store",
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packdim_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "packdim_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "packdim_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packdim_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// observeEstimate records the outcome of one estimator run.
func observeEstimate(source string, rep *estimate.Report, err error, elapsed time.Duration) {
	estimateDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		estimatesTotal.WithLabelValues(source, "error").Inc()
		return
	}
	estimatesTotal.WithLabelValues(source, "success").Inc()
	observeReport(rep)
}

// observeReport records the resolved axes and warnings of a report.
func observeReport(rep *estimate.Report) {
	resolvedAxes.Observe(float64(len(rep.Dimensions)))
	for _, w := range rep.Warnings {
		mappingWarningsTotal.WithLabelValues(warningKind(w)).Inc()
	}
}

// warningKind returns the prefix of a "kind:detail" warning.
func warningKind(w string) string {
	kind, _, found := strings.Cut(w, ":")
	if !found || kind == "" {
		return "other"
	}
	return kind
}
