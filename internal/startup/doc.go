// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] resolves configuration with viper: environment variables
// first, then the optional config file passed with --config (YAML, TOML or
// JSON), then defaults:
//
//   - LIBRARY_DIR: library root holding images/ and mtime.json (default: /library)
//   - DATABASE_DIR: directory for the SQLite index (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: enable or disable the metrics server (default: true)
//   - SYNC_INTERVAL: scheduled sync interval as Go duration, 0 disables (default: 30m)
//   - POLL_INTERVAL: lightweight change check interval, 0 disables (default: 30s)
//   - SYNC_WORKERS: concurrent detection workers (default: 2 per CPU, max 32)
//   - SYNC_CHUNK_SIZE: items per detection chunk (default: derived from GOMEMLIMIT)
//   - SYNC_BATCH_SIZE: rows per store transaction (default: 500)
//   - FS_TIMEOUT: per-call filesystem timeout (default: 10s)
//   - PROBE_IMAGES: decode images missing dimensions in their sidecar (default: false)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_FILE: also write logs to this file, rotated (default: unset)
//   - LOG_HEALTH_CHECKS: log health check requests (default: true)
//
// Memory variables (MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT) are read by the
// memory package.
//
// # Directory Setup
//
// The database directory is created if missing and must be writable. A
// missing library only logs a warning; syncs fail cleanly until it appears.
//
// # Logging
//
// The Log* functions print the sectioned startup and shutdown report.
package startup
