// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - LIBRARY_DIR: Path to the music library root (default: /music)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - SYNC_INTERVAL: Full sync interval as Go duration, 0 disables (default: 1h)
//   - POLL_INTERVAL: Top-level change polling interval, 0 disables (default: 0)
//   - WATCH_ENABLED: Sync paths reported by filesystem notifications (default: true)
//   - WATCH_DEBOUNCE: Quiet period before a changed path is synced (default: 2s)
//   - AUTOSAVE_INTERVAL: Inserts per committed batch, 0 for one transaction (default: 100)
//   - SEARCH_LIMIT: Maximum search results (default: 400)
//   - SEARCH_TERM_LIMIT: Candidate files fetched per search term (default: 400)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//
// PORT and METRICS_PORT must be distinct TCP ports. Non-positive search
// limits fall back to their defaults and a negative AUTOSAVE_INTERVAL
// means a single transaction per sync.
//
// The library directory is checked but never created; a missing library is
// reported and syncs refuse to run until it is mounted. The database
// directory is created if needed and must be writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogIndexerInit]: Sync schedule, change detection and batching
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
