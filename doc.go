// Package main provides the entry point for the music library server.
//
// The server keeps a SQLite index of a music directory tree in line with
// the disk and answers word prefix searches, random picks and directory
// listings over HTTP.
//
// # Application Lifecycle
//
//  1. Memory Limit: Sets GOMEMLIMIT from MEMORY_LIMIT when the container has one
//  2. Configuration Loading: Reads environment variables and validates directories
//  3. Database Initialization: Opens the SQLite database and creates the schema
//  4. Memory Monitor: Holds syncs back between batches while the heap is critical
//  5. Indexer: Starts the initial full sync, the periodic sync, the
//     filesystem watcher and change polling as configured
//  6. Metrics Collector: Refreshes library gauges every minute
//  7. HTTP Servers: The API server and, when enabled, the metrics server
//  8. Graceful Shutdown: Handles SIGINT/SIGTERM and stops all components
//
// # HTTP Server
//
// The API server (default port 8080) serves:
//
//   - /health, /healthz, /livez, /readyz, /version
//   - GET /api/search?q=...&limit=...
//   - GET /api/random?count=...
//   - GET /api/browse and GET /api/browse/{path}
//   - POST /api/sync
//   - GET /api/stats
//
// The metrics server (default port 9090) serves /metrics and /health.
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests (30s timeout)
//  2. Stop the indexer; a sync in progress is canceled, committed batches stay
//  3. Stop the memory monitor
//  4. Stop the metrics collector
//  5. Close the database
//
// # Build Requirements
//
// CGO is required for github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -o music-library .
//
// See the startup package for the environment variables.
package main
