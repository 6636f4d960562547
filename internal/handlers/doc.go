// Package handlers provides the HTTP handlers of the music library API.
//
// It includes handlers for:
//   - Search and random sampling over the indexed library
//   - Directory browsing from the in-memory replica
//   - Triggering full and partial syncs
//   - Health checks, library statistics and version information
package handlers
