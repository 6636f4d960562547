// Package diff walks the library on disk and the stored tree side by side.
//
// Every path is reported once as a Record holding the disk view and the
// stored view, either of which may be Absent. Records are produced depth
// first with parents before children, and the children of a record are only
// computed after the visitor has handled it. A visitor that deletes a stored
// subtree therefore never sees its stale children, and may return
// SkipChildren to prune the walk explicitly.
//
// Disk entries go through a safety filter before they are reported: entries
// that vanished, fall outside the root, have names that are not valid UTF-8,
// or are directory symlinks that would loop or sit below the first level are
// skipped and counted in the sync skip metrics.
package diff
