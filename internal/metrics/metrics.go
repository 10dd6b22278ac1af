package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_encoder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_encoder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_encoder_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job engine metrics
var (
	JobsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_encoder_jobs_created_total",
			Help: "Total number of transcode jobs submitted",
		},
	)

	JobsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_encoder_jobs",
			Help: "Number of jobs in the registry by status",
		},
		[]string{"status"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_encoder_queue_depth",
			Help: "Number of pending jobs waiting for an encode slot",
		},
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_encoder_active_workers",
			Help: "Number of encode workers currently running",
		},
	)

	EncodesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_encoder_encodes_completed_total",
			Help: "Total number of successfully completed encodes",
		},
	)

	EncodesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_encoder_encodes_failed_total",
			Help: "Total number of failed encodes",
		},
	)

	EncodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_encoder_encode_duration_seconds",
			Help:    "Wall-clock duration of completed encodes in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		},
	)

	BytesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_encoder_bytes_saved_total",
			Help: "Cumulative difference between source and output sizes for completed encodes",
		},
	)
)

// Catalog metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_encoder_catalog_scans_total",
			Help: "Total number of catalog scans",
		},
	)

	ScanDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_encoder_catalog_scan_duration_seconds",
			Help: "Duration of the last catalog scan in seconds",
		},
	)

	CatalogItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_encoder_catalog_items",
			Help: "Number of items in the media catalog by type",
		},
		[]string{"type"},
	)
)

// SetJobGauges replaces the per-status job gauges with the given counts.
// Callers pass a map containing every status, zeros included, so stale
// series do not linger.
func SetJobGauges(counts map[string]int) {
	for status, count := range counts {
		JobsByStatus.WithLabelValues(status).Set(float64(count))
	}
}

// EncodeCompleted records the outcome of one successful encode.
func EncodeCompleted(durationSeconds float64, sourceSize, outputSize int64) {
	EncodesCompleted.Inc()
	EncodeDuration.Observe(durationSeconds)
	if saved := sourceSize - outputSize; saved > 0 {
		BytesSaved.Add(float64(saved))
	}
}
