/*
Package filesystem provides resilient filesystem operations for scanning the
library: automatic retry on NFS stale file handle errors and a per-attempt
timeout so a hung stat or read cannot stall a sync run.

# Key Features

  - Automatic retry with exponential backoff for NFS ESTALE errors (errno 116)
  - Per-attempt timeout (RetryConfig.Timeout) returning ErrTimeout
  - Context cancellation honored between attempts
  - Metrics through a pluggable Observer (see metrics.NewFilesystemObserver)

# Usage

	cfg := filesystem.DefaultRetryConfig()
	info, err := filesystem.StatWithRetry(ctx, "/library/images/K1.info", cfg)
	data, err := filesystem.ReadFileWithRetry(ctx, "/library/mtime.json", cfg)

Only ESTALE is retried; every other error is returned immediately so that a
missing sidecar is reported without delay.
*/
package filesystem
