package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelter_media_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelter_media_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelter_media_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelter_media_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelter_media_db_version_conflicts_total",
			Help: "Total number of record updates rejected by a version mismatch",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelter_media_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Blob store metrics
var (
	BlobOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_blob_operations_total",
			Help: "Total number of blob store operations",
		},
		[]string{"operation", "status"},
	)

	BlobOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelter_media_blob_operation_duration_seconds",
			Help:    "Blob store operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	BlobStaleRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_blob_stale_retries_total",
			Help: "Content file operations retried after a stale file handle, by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// Ingest and transform metrics
var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_ingest_total",
			Help: "Total number of attachments ingested by kind and status",
		},
		[]string{"kind", "status"}, // kind: "picture", "pdf", "document", "link"
	)

	IngestBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelter_media_ingest_bytes",
			Help:    "Stored size of ingested attachments in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"kind"},
	)

	TransformsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_transforms_total",
			Help: "Total number of media transforms by operation and status",
		},
		[]string{"operation", "status"}, // status: "success", "fallback"
	)

	TransformDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelter_media_transform_duration_seconds",
			Help:    "Media transform duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	ExternalToolRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_external_tool_runs_total",
			Help: "Total number of external command runs by tool and status",
		},
		[]string{"tool", "status"},
	)

	ExternalToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelter_media_external_tool_duration_seconds",
			Help:    "External command run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"tool"},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelter_media_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelter_media_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses",
		},
	)
)

// Preference and lifecycle metrics
var (
	PreferenceChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_preference_changes_total",
			Help: "Total number of explicit preferred media changes by flag",
		},
		[]string{"flag"}, // "web", "doc", "video"
	)

	ReelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_reelections_total",
			Help: "Total number of preferred flags re-elected after a delete",
		},
		[]string{"flag"},
	)

	ExpiredMediaTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_expired_total",
			Help: "Total number of media records removed by the expiry sweep",
		},
		[]string{"reason"}, // "retain_until", "document_age"
	)

	BulkItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_bulk_items_total",
			Help: "Total number of items processed by bulk jobs",
		},
		[]string{"job", "status"}, // status: "updated", "skipped", "failed"
	)

	BulkJobLastDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelter_media_bulk_job_last_duration_seconds",
			Help: "Duration of the last bulk job run in seconds",
		},
		[]string{"job"},
	)

	SignaturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelter_media_signatures_total",
			Help: "Total number of document signing attempts",
		},
		[]string{"status"}, // "signed", "rejected"
	)
)

// Media library metrics
var (
	MediaRecordsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelter_media_records_total",
			Help: "Total number of media records by kind",
		},
		[]string{"kind"}, // "image", "document", "link"
	)

	MediaStoredBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelter_media_stored_bytes",
			Help: "Sum of the recorded sizes of all stored media",
		},
	)

	MediaSignedTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelter_media_signed_documents",
			Help: "Number of documents carrying a signature",
		},
	)
)

// Memory metrics
var (
	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelter_media_go_mem_alloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelter_media_memory_usage_ratio",
			Help: "Memory usage as a ratio of the configured limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelter_media_memory_paused",
			Help: "Whether bulk processing is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelter_media_memory_gc_pauses_total",
			Help: "Total number of times processing was paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelter_media_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
