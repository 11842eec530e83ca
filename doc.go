// Package main provides the kiwi command.
//
// kiwi keeps a SQLite index in step with an on-disk asset library: a
// directory of <id>.info folders, each holding a media file and a
// metadata.json sidecar. Each sync pass compares the library against the
// index, reads only what changed since the last cursor, and writes
// deletions, upserts and folder/tag relationships in batches.
//
// # Commands
//
//	kiwi serve     run the engine with its HTTP API and metrics server
//	kiwi sync      run one pass and print the outcome (--json for machines)
//	kiwi version   print build information
//
// All commands accept --config to read a YAML, TOML or JSON file.
// Environment variables override values from the file.
//
// # Environment Variables
//
//   - LIBRARY_DIR: library root (default /library)
//   - DATABASE_DIR: directory for kiwi.db (default /database)
//   - PORT: API port (default 8080)
//   - METRICS_PORT: Prometheus port (default 9090)
//   - METRICS_ENABLED: serve /metrics (default true)
//   - SYNC_INTERVAL: scheduled full pass, 0 disables (default 30m)
//   - POLL_INTERVAL: lightweight change check, 0 disables (default 30s)
//   - SYNC_WORKERS, SYNC_CHUNK_SIZE, SYNC_BATCH_SIZE: tuning, 0 for auto
//   - FS_TIMEOUT: per filesystem call timeout (default 10s)
//   - PROBE_IMAGES: fill missing image dimensions from the file (default false)
//   - LOG_LEVEL, LOG_FILE, LOG_HEALTH_CHECKS: logging
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO: memory limit handling
//
// # HTTP API
//
//	GET  /health, /healthz   engine status
//	GET  /livez, /readyz     probes
//	GET  /version            build information
//	GET  /api/sync           live progress and last result
//	POST /api/sync           start a sync (409 while one runs)
//	GET  /api/items/{id}     one indexed item
//	GET  /api/stats          index counts
//
// # Graceful Shutdown
//
// SIGINT and SIGTERM stop the metrics collector, cancel any running sync
// (committed batches stay committed and the cursor is not advanced), stop
// the memory monitor, then shut down both HTTP servers within 30 seconds.
package main
