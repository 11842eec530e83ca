// Package metrics provides Prometheus instrumentation for the kiwi sync service.
//
// All metrics are prefixed with "kiwi_" to avoid naming collisions.
//
// # Metric Categories
//
// ## Sync Metrics
//
// Track library synchronization runs:
//   - SyncRunsTotal: Counter of runs by terminal state
//   - SyncIsRunning: Gauge indicating if a run is active
//   - SyncPhaseDuration: Histogram of phase durations
//   - SyncItemsClassified / SyncLastRunItems: classification counts
//   - SyncItemErrors: per-item errors by phase
//   - SyncBatchesTotal: store batches by operation and status
//   - WorkersInFlight / WorkersConcurrency: bounded runner occupancy
//
// ## Database Metrics
//
//   - DBQueryTotal, DBQueryDuration, DBTransactionDuration, DBRowsAffected
//
// ## Library Metrics
//
// Updated by the Collector from index statistics:
//   - LibraryItemsTotal by media type, LibraryFolderLinks, LibraryTagLinks
//
// ## Filesystem Metrics
//
// Recorded through NewFilesystemObserver for every stat, read and readdir
// issued while scanning the library, including ESTALE retries.
package metrics
