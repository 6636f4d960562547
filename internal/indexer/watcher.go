package indexer

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"music-library/internal/filesystem"
	"music-library/internal/logging"
	"music-library/internal/metrics"
	"music-library/internal/workers"
)

// watcher keeps an fsnotify watch on every stored directory.
type watcher struct {
	fs   *fsnotify.Watcher
	base string

	mu   sync.Mutex
	dirs map[string]struct{}
	// set once the watch limit was hit, so it is only reported once
	limited bool
}

func newWatcher(base string) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{fs: fw, base: base, dirs: make(map[string]struct{})}
	if err := fw.Add(base); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w.dirs[""] = struct{}{}
	metrics.WatchedDirectories.Set(1)
	return w, nil
}

// add watches the directory at rel. Errors are logged and otherwise ignored;
// the periodic sync covers directories that cannot be watched.
func (w *watcher) add(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addLocked(rel)
	metrics.WatchedDirectories.Set(float64(len(w.dirs)))
}

func (w *watcher) addLocked(rel string) {
	if _, ok := w.dirs[rel]; ok {
		return
	}
	if err := w.fs.Add(filepath.Join(w.base, rel)); err != nil {
		if !w.limited {
			logging.Warn("Cannot watch %q, changes below it wait for the next full sync: %v", rel, err)
			w.limited = true
		}
		return
	}
	w.dirs[rel] = struct{}{}
}

// reconcile makes the watched set equal to the root plus dirs.
func (w *watcher) reconcile(dirs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	want := make(map[string]struct{}, len(dirs)+1)
	want[""] = struct{}{}
	for _, d := range dirs {
		want[filepath.FromSlash(d)] = struct{}{}
	}

	for rel := range w.dirs {
		if _, ok := want[rel]; !ok {
			// the kernel drops watches of deleted directories on its own
			_ = w.fs.Remove(filepath.Join(w.base, rel))
			delete(w.dirs, rel)
		}
	}
	for rel := range want {
		w.addLocked(rel)
	}

	metrics.WatchedDirectories.Set(float64(len(w.dirs)))
	logging.Debug("Watching %d directories", len(w.dirs))
}

func (w *watcher) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

func (w *watcher) close() error {
	return w.fs.Close()
}

// eventType returns the metric label of an event.
func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Write):
		return "write"
	default:
		return "chmod"
	}
}

// watchLoop turns filesystem events into debounced partial syncs of the
// changed paths.
func (idx *Indexer) watchLoop(w *watcher) {
	defer idx.wg.Done()
	logging.Info("Watching %s for changes (debounce %v)", idx.base, idx.opts.Debounce)

	for {
		select {
		case <-idx.stopChan:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			kind := eventType(event.Op)
			metrics.WatcherEventsTotal.WithLabelValues(kind).Inc()
			// contents are not indexed, only names
			if kind == "chmod" || kind == "write" {
				continue
			}

			rel, err := idx.relative(event.Name)
			if err != nil {
				logging.Debug("Ignoring event outside the library: %s", event.Name)
				continue
			}
			if kind == "create" {
				if info, err := filesystem.StatWithRetry(event.Name, idx.opts.Retry); err == nil && info.IsDir() {
					w.add(rel)
				}
			}
			idx.schedule(rel)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn("Filesystem watcher error: %v", err)
		}
	}
}

// schedule runs a partial sync of rel once no event for it arrived for the
// debounce period.
func (idx *Indexer) schedule(rel string) {
	idx.debounceMu.Lock()
	defer idx.debounceMu.Unlock()

	select {
	case <-idx.stopChan:
		return
	default:
	}

	if timer, exists := idx.debounce[rel]; exists {
		timer.Stop()
	}
	idx.debounce[rel] = time.AfterFunc(idx.opts.Debounce, func() {
		idx.debounceMu.Lock()
		delete(idx.debounce, rel)
		idx.debounceMu.Unlock()

		if _, err := idx.PartialSync(idx.ctx, rel); err != nil && idx.ctx.Err() == nil {
			logging.Error("Sync of changed path %q failed: %v", rel, err)
		}
	})
}

// pollState is the last seen state of the root and its direct children.
// Polling catches changes on filesystems without notifications, such as
// NFS mounts, without walking the tree.
type pollState struct {
	mu      sync.Mutex
	primed  bool
	rootMod time.Time
	// top-level name to modification time
	entries map[string]time.Time
}

// maxPollWorkers caps the concurrent stats of one poll.
const maxPollWorkers = 16

// snapshot reads the current top-level state of base.
func snapshot(base string, retry filesystem.RetryConfig) (time.Time, map[string]time.Time, error) {
	rootInfo, err := filesystem.StatWithRetry(base, retry)
	if err != nil {
		return time.Time{}, nil, err
	}
	des, err := filesystem.ReadDirWithRetry(base, retry)
	if err != nil {
		return time.Time{}, nil, err
	}
	var mu sync.Mutex
	entries := make(map[string]time.Time, len(des))
	g, _ := workers.IOGroup(context.Background(), maxPollWorkers)
	for _, de := range des {
		g.Go(func() error {
			var mod time.Time
			if info, err := filesystem.StatWithRetry(filepath.Join(base, de.Name()), retry); err == nil && info.IsDir() {
				mod = info.ModTime()
			}
			mu.Lock()
			entries[de.Name()] = mod
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return rootInfo.ModTime(), entries, nil
}

// update records the current state after a sync.
func (p *pollState) update(base string, retry filesystem.RetryConfig) {
	rootMod, entries, err := snapshot(base, retry)
	if err != nil {
		logging.Warn("Failed to read library root for change polling: %v", err)
		return
	}
	p.mu.Lock()
	p.primed = true
	p.rootMod = rootMod
	p.entries = entries
	p.mu.Unlock()
}

// changes returns the top-level entries that appeared, disappeared or whose
// directory was modified since the last update. Changes deeper down are left
// to the periodic sync.
func (p *pollState) changes(base string, retry filesystem.RetryConfig) ([]string, error) {
	rootMod, entries, err := snapshot(base, retry)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.primed {
		return nil, nil
	}

	var changed []string
	if rootMod.After(p.rootMod) {
		for name := range p.entries {
			if _, ok := entries[name]; !ok {
				changed = append(changed, name)
			}
		}
	}
	for name, mod := range entries {
		last, ok := p.entries[name]
		if !ok || mod.After(last) {
			changed = append(changed, name)
		}
	}
	return changed, nil
}

func (idx *Indexer) pollForChanges() {
	defer idx.wg.Done()

	// Wait for initial sync to complete
	for !idx.IsReady() {
		select {
		case <-time.After(time.Second):
		case <-idx.stopChan:
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", idx.opts.PollInterval)
	ticker := time.NewTicker(idx.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := idx.pollState.changes(idx.base, idx.opts.Retry)
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if len(changed) == 0 {
				continue
			}
			metrics.WatcherEventsTotal.WithLabelValues("poll").Add(float64(len(changed)))
			logging.Info("Changes detected in %d top-level entries, syncing them", len(changed))
			if _, err := idx.PartialSync(idx.ctx, changed...); err != nil {
				logging.Error("Sync after change detection failed: %v", err)
			}
		case <-idx.stopChan:
			logging.Info("Change detection polling stopped")
			return
		}
	}
}
