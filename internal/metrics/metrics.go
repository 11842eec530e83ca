package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiwi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiwi_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiwi_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"result"}, // "commit" or "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiwi_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Sync metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_sync_runs_total",
			Help: "Total number of sync runs by terminal state",
		},
		[]string{"state"}, // "completed" or "failed"
	)

	SyncIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_sync_running",
			Help: "Whether a sync run is in progress (1 = running, 0 = idle)",
		},
	)

	SyncLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_sync_last_run_timestamp",
			Help: "Unix timestamp of the last finished sync run",
		},
	)

	SyncLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_sync_last_run_duration_seconds",
			Help: "Duration of the last sync run in seconds",
		},
	)

	SyncPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiwi_sync_phase_duration_seconds",
			Help:    "Duration of each sync phase in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"phase"},
	)

	SyncItemsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_sync_items_classified_total",
			Help: "Items classified by sync runs, by classification",
		},
		[]string{"class"}, // new, modified, unchanged, errored, deleted
	)

	SyncLastRunItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiwi_sync_last_run_items",
			Help: "Items per classification in the last sync run",
		},
		[]string{"class"},
	)

	SyncItemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_sync_item_errors_total",
			Help: "Per-item errors by phase",
		},
		[]string{"phase"},
	)

	SyncBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_sync_batches_total",
			Help: "Store batches applied by operation and status",
		},
		[]string{"operation", "status"},
	)

	SyncPollChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiwi_sync_poll_checks_total",
			Help: "Lightweight library change checks performed",
		},
	)

	SyncPollChangesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiwi_sync_poll_changes_detected_total",
			Help: "Library change checks that triggered a sync",
		},
	)

	WorkersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_workers_in_flight",
			Help: "Work units currently executing in the bounded runner",
		},
	)

	WorkersConcurrency = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_workers_concurrency",
			Help: "Concurrency ceiling of the current bounded run",
		},
	)
)

// Library metrics
var (
	LibraryItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiwi_library_items_total",
			Help: "Indexed items by media type",
		},
		[]string{"type"},
	)

	LibraryFolderLinks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_library_folder_links",
			Help: "Number of item-folder relationships",
		},
	)

	LibraryTagLinks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_library_tag_links",
			Help: "Number of item-tag relationships",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiwi_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_filesystem_retry_attempts_total",
			Help: "Filesystem retry attempts after ESTALE",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiwi_filesystem_stale_errors_total",
			Help: "ESTALE errors encountered",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiwi_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiwi_memory_paused",
			Help: "Whether sync work is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiwi_memory_gc_pauses_total",
			Help: "Times sync work was paused and a GC forced due to memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiwi_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
