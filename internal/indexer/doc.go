// Package indexer keeps the library store in line with the music directory.
//
// A sync merges the directory tree with the stored tree (see package diff)
// and applies every difference inside a transaction:
//   - Added entries are registered with their words
//   - Removed entries are deleted with their whole stored subtree
//   - Entries whose type changed are removed and registered again
//
// Inserts are committed in batches of Options.AutosaveInterval; batches
// committed before a failure stay committed. After a successful sync the
// word occurrence counts are recounted and the in-memory replica is rebuilt.
//
// Syncs run in several ways:
//   - Initial sync: full sync in the background on Start
//   - Periodic sync: full sync every Options.Interval
//   - File watching: debounced partial syncs of paths reported by fsnotify
//   - Polling: partial syncs of changed top-level entries
//   - Manual trigger: FullSync, PartialSync or TriggerFullSync
//
// Syncs never run concurrently.
package indexer
