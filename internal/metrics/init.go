package metrics

import "music-library/internal/filesystem"

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"library", "database", "unknown"}
	fsOps := []string{"stat", "lstat", "readdir", "readlink"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			for _, ev := range filesystem.RetryEvents {
				FilesystemRetryEvents.WithLabelValues(vol, op, string(ev))
			}
		}
	}

	for _, op := range []string{"initialize_schema", "lookup", "children", "find_by_path",
		"register_file", "remove_file", "recount_occurrences", "fetch_file_ids",
		"entries_from_ids", "id_range", "load_replica", "stats", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, kind := range []string{"full", "partial"} {
		SyncRunsTotal.WithLabelValues(kind, "success")
		SyncRunsTotal.WithLabelValues(kind, "error")
		SyncDuration.WithLabelValues(kind)
	}

	for _, reason := range []string{"vanished", "outside_root", "symlink_cycle", "nested_symlink", "encoding"} {
		SyncEntriesSkipped.WithLabelValues(reason)
	}

	for _, mode := range []string{"normal", "files", "dirs", "random"} {
		SearchQueriesTotal.WithLabelValues(mode, "success")
		SearchQueriesTotal.WithLabelValues(mode, "error")
	}

	for _, ev := range []string{"create", "write", "remove", "rename", "chmod", "poll"} {
		WatcherEventsTotal.WithLabelValues(ev)
	}
}
