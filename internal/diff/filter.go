package diff

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"music-library/internal/filesystem"
	"music-library/internal/logging"
	"music-library/internal/metrics"
)

// Reasons an entry is left out of a walk.
const (
	skipVanished      = "vanished"
	skipOutsideRoot   = "outside_root"
	skipSymlinkCycle  = "symlink_cycle"
	skipNestedSymlink = "nested_symlink"
	skipEncoding      = "encoding"
)

// entry is a directory entry that passed the safety filter.
type entry struct {
	name  string
	isDir bool
}

// isWithin reports whether path equals dir or lies below it.
func isWithin(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

// admit decides whether the entry at relpath is walked. Entries that vanished
// since listing, fall outside the root, have undecodable names, or are
// directory symlinks looping back to the root, one of its ancestors or the
// entry's own ancestors are rejected. Directory symlinks are only followed
// directly below the root.
func (e *Engine) admit(relpath string) (entry, bool) {
	name := filepath.Base(relpath)
	if !utf8.ValidString(name) {
		logging.Warn("Skipping %q: filename is not valid UTF-8", relpath)
		return entry{}, e.skip(skipEncoding)
	}

	full := filepath.Join(e.Base, relpath)
	if !isWithin(full, e.Base) || strings.HasPrefix(filepath.Clean(relpath), "..") {
		logging.Warn("Skipping %q: outside of library root %s", relpath, e.Base)
		return entry{}, e.skip(skipOutsideRoot)
	}

	info, err := filesystem.LstatWithRetry(full, e.Retry)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Debug("Treating %q as absent: %v", relpath, err)
		}
		return entry{}, e.skip(skipVanished)
	}

	if info.Mode()&fs.ModeSymlink == 0 {
		return entry{name: name, isDir: info.IsDir()}, true
	}

	target, err := filesystem.StatWithRetry(full, e.Retry)
	if err != nil {
		logging.Debug("Treating dangling symlink %q as absent: %v", relpath, err)
		return entry{}, e.skip(skipVanished)
	}
	if !target.IsDir() {
		return entry{name: name}, true
	}

	resolved, err := filesystem.EvalSymlinksWithRetry(full, e.Retry)
	if err != nil {
		logging.Debug("Treating unresolvable symlink %q as absent: %v", relpath, err)
		return entry{}, e.skip(skipVanished)
	}

	root := e.realBase()
	parent := filepath.Join(root, filepath.Dir(relpath))
	if isWithin(root, resolved) || isWithin(parent, resolved) {
		logging.Warn("Skipping symlink %q: target %s is an ancestor and would loop", relpath, resolved)
		return entry{}, e.skip(skipSymlinkCycle)
	}
	if strings.Count(filepath.Clean(relpath), string(filepath.Separator)) > 0 {
		logging.Warn("Skipping symlink %q: directory links are only followed directly below the root", relpath)
		return entry{}, e.skip(skipNestedSymlink)
	}

	return entry{name: name, isDir: true}, true
}

func (e *Engine) skip(reason string) bool {
	metrics.SyncEntriesSkipped.WithLabelValues(reason).Inc()
	return false
}

// realBase is the library root with its own symlinks resolved.
func (e *Engine) realBase() string {
	e.baseOnce.Do(func() {
		e.resolvedBase = e.Base
		if resolved, err := filesystem.EvalSymlinksWithRetry(e.Base, e.Retry); err == nil {
			e.resolvedBase = resolved
		}
	})
	return e.resolvedBase
}
