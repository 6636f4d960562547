// Package logging provides a simple leveled logging interface for the
// music library server and tools.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (per-record sync decisions)
//   - INFO: General operational messages
//   - WARN: Warning conditions (skipped entries, retries)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// explicitly with SetLevel.
package logging
