package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"library", "database", "unknown"}
	fsOps := []string{"stat", "open", "read", "readdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, state := range []string{"completed", "failed"} {
		SyncRunsTotal.WithLabelValues(state)
	}

	for _, class := range []string{"new", "modified", "unchanged", "errored", "deleted"} {
		SyncItemsClassified.WithLabelValues(class)
		SyncLastRunItems.WithLabelValues(class)
	}

	for _, phase := range []string{"validating", "connecting", "scanning", "detecting",
		"deleting", "upserting", "relating", "finalizing"} {
		SyncPhaseDuration.WithLabelValues(phase)
		SyncItemErrors.WithLabelValues(phase)
	}

	for _, op := range []string{"delete", "upsert", "relate"} {
		SyncBatchesTotal.WithLabelValues(op, "success")
		SyncBatchesTotal.WithLabelValues(op, "error")
	}

	for _, mt := range []string{"image", "video", "audio", "document", "unknown"} {
		LibraryItemsTotal.WithLabelValues(mt)
	}

	for _, op := range []string{"ping", "item_states", "get_item", "upsert_items", "delete_items",
		"delete_relationships", "insert_relationships", "clear_hashes", "get_cursor",
		"set_sync_state", "count_items", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}
}
