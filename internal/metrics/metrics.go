package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "music_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_library_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "music_library_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "music_library_db_transaction_duration_seconds",
			Help:    "Duration of database transactions by outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "music_library_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DictionaryWordsCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "music_library_dictionary_words_collected_total",
			Help: "Dictionary words deleted after their last posting was removed",
		},
	)
)

// Sync metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_library_sync_runs_total",
			Help: "Total number of sync runs",
		},
		[]string{"kind", "status"}, // kind: "full", "partial"
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "music_library_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"kind"},
	)

	SyncEntriesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "music_library_sync_entries_added_total",
			Help: "Total number of files and directories added by sync",
		},
	)

	SyncEntriesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "music_library_sync_entries_removed_total",
			Help: "Total number of files and directories removed by sync",
		},
	)

	SyncBatchCommits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "music_library_sync_batch_commits_total",
			Help: "Intermediate commits made during long syncs",
		},
	)

	SyncEntriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_library_sync_entries_skipped_total",
			Help: "Filesystem entries skipped by the safety filter",
		},
		[]string{"reason"},
	)

	SyncIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_sync_running",
			Help: "Whether a sync is currently running (1 = running, 0 = idle)",
		},
	)

	SyncLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_sync_last_run_timestamp",
			Help: "Timestamp of the last successful sync",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_library_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Search metrics
var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_library_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"mode", "status"},
	)

	SearchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "music_library_search_candidates",
			Help:    "Candidate identifiers fetched per search before ranking",
			Buckets: []float64{0, 1, 10, 50, 100, 400, 1000, 5000},
		},
	)

	SearchResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "music_library_search_results",
			Help:    "Resolved entries returned per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 400},
		},
	)
)

// Library gauges
var (
	LibraryFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_files",
			Help: "Number of files in the index",
		},
	)

	LibraryDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_directories",
			Help: "Number of directories in the index",
		},
	)

	LibraryWords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_dictionary_words",
			Help: "Number of words in the search dictionary",
		},
	)

	LibraryPostings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_search_postings",
			Help: "Number of word to file rows in the search table",
		},
	)

	LibraryStatsAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_stats_age_seconds",
			Help: "Seconds since the library counts were last recalculated",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_memory_usage_ratio",
			Help: "Heap allocation as a share of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_library_memory_paused",
			Help: "Whether syncs are held back by memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "music_library_memory_gc_pauses_total",
			Help: "Times memory pressure paused syncs and forced a collection",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "music_library_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_library_filesystem_operation_errors_total",
			Help: "Filesystem operations that returned an error",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_library_filesystem_retry_events_total",
			Help: "Steps of the NFS stale file handle retry loop (stale, backoff, success, failure)",
		},
		[]string{"volume", "operation", "event"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "music_library_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
