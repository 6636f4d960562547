// Package metrics provides Prometheus instrumentation for the music library.
//
// All metrics are prefixed with "music_library_" and registered with the
// default registry through promauto.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Database Metrics
//   - DBQueryTotal / DBQueryDuration by operation
//   - DBTransactionDuration by outcome (commit/rollback)
//   - DBRowsAffected by write operation
//   - DictionaryWordsCollected: words removed by reference counting
//
// ## Sync Metrics
//   - SyncRunsTotal / SyncDuration by kind (full/partial)
//   - SyncEntriesAdded, SyncEntriesRemoved, SyncBatchCommits
//   - SyncEntriesSkipped by safety-filter reason
//   - SyncIsRunning, SyncLastRunTimestamp
//   - WatcherEventsTotal, WatchedDirectories
//
// ## Search Metrics
//   - SearchQueriesTotal by mode, SearchCandidates, SearchResultsReturned
//
// ## Library Gauges
//   - LibraryFiles, LibraryDirectories, LibraryWords (updated by [Collector])
//
// # Usage
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// Sync throughput:
//
//	rate(music_library_sync_entries_added_total[1h])
package metrics
