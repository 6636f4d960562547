// Package database stores the mirrored library tree in SQLite.
//
// Three tables hold the mirror:
//   - files: one row per path with its parent identifier, filename,
//     extension and directory flag. Top-level rows use tree.RootID as parent.
//   - dictionary: one row per normalized word with a posting count.
//   - search: postings pairing a dictionary row with a files row.
//
// Writers go through BeginBatch/EndBatch and the index maintenance helpers
// RegisterFile, RemoveFile and RemoveRecursive, which take a Querier so they
// run inside the caller's transaction. Words are reference counted: removing
// the last posting of a word removes the word.
//
// Readers use Search, RandomFileEntries and EntriesFromFileIDs, or load an
// immutable replica of the files table with LoadReplica.
//
// The database uses WAL mode so queries keep running while a sync holds a
// write transaction.
package database
