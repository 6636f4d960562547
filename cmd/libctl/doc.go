// Package main provides libctl, a command-line tool that syncs and queries
// a music library database without running the server.
//
// # Usage
//
//	libctl [--library DIR] [--database DIR] [--log-level LEVEL] [--autosave N] <command>
//
// # Commands
//
//   - sync: Bring the whole database in line with the library directory
//   - update <path>...: Sync only the given paths and everything below them
//   - search <words>...: Print the entries matching the given word prefixes
//   - random [count]: Print up to count (at most 100) randomly picked files
//   - stats: Print row counts of the library tables
//
// The --library and --database flags default to the LIBRARY_DIR and
// DATABASE_DIR environment variables used by the server. Interrupting a sync
// keeps the batches it already committed.
//
// The server should be stopped while libctl writes to the same database;
// SQLite serializes the writers but the server's replica only notices the
// change on its next sync.
package main
