package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/flatscan/internal/filter"
	"github.com/MeKo-Tech/flatscan/internal/scan"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flatscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Scan operation metrics
	scanOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatscan_scan_operations_total",
			Help: "Total number of scan operations",
		},
		[]string{"operation", "status"}, // operation: rectify, filters
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flatscan_scan_duration_seconds",
			Help:    "Scan operation duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	scanErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatscan_scan_errors_total",
			Help: "Total number of failed scans by error kind",
		},
		[]string{"kind"},
	)

	filterStagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatscan_filter_stages_total",
			Help: "Total number of filter stages applied",
		},
		[]string{"type"},
	)

	outputPixels = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flatscan_output_pixels",
			Help:    "Pixel count of produced images",
			Buckets: prometheus.ExponentialBuckets(64*64, 4, 9),
		},
		[]string{"operation"},
	)

	ocrOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatscan_ocr_outcomes_total",
			Help: "Text extraction outcomes",
		},
		[]string{"status"}, // status: ok, empty, unavailable, skipped
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatscan_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flatscan_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024, 100 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flatscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatscan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func observeScan(op string, start time.Time, res *scan.Result, err error) {
	status := "success"
	if err != nil || res == nil {
		status = "error"
	}
	scanOperationsTotal.WithLabelValues(op, status).Inc()
	scanDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func observeFilters(specs []filter.Spec) {
	for _, sp := range specs {
		filterStagesTotal.WithLabelValues(sp.Name()).Inc()
	}
}
