package indexer

import (
	"time"

	"music-library/internal/logging"
)

// Status contains health and sync information.
type Status struct {
	Ready               bool      `json:"ready"`
	Syncing             bool      `json:"syncing"`
	StartTime           time.Time `json:"startTime"`
	Uptime              string    `json:"uptime"`
	InitialSyncComplete bool      `json:"initialSyncComplete"`
	LastSync            time.Time `json:"lastSync,omitempty"`
	LastKind            string    `json:"lastKind,omitempty"`
	LastDuration        string    `json:"lastDuration,omitempty"`
	LastResult          Result    `json:"lastResult"`
	LastError           string    `json:"lastError,omitempty"`
	WatchedDirectories  int       `json:"watchedDirectories"`
}

// Start runs the initial full sync in the background and starts the
// periodic sync, the filesystem watcher and change polling as configured.
func (idx *Indexer) Start() error {
	if idx.opts.Watch {
		w, err := newWatcher(idx.base)
		if err != nil {
			logging.Warn("Filesystem notifications unavailable, relying on periodic sync: %v", err)
		} else {
			idx.stateMu.Lock()
			idx.watch = w
			idx.stateMu.Unlock()
			idx.wg.Add(1)
			go idx.watchLoop(w)
		}
	}

	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		logging.Info("Starting initial sync in background...")
		if _, err := idx.FullSync(idx.ctx); err != nil {
			logging.Error("Initial sync error: %v", err)
		}
	}()

	if idx.opts.Interval > 0 {
		idx.wg.Add(1)
		go idx.periodicSync()
	}

	if idx.opts.PollInterval > 0 {
		idx.wg.Add(1)
		go idx.pollForChanges()
	}

	return nil
}

// Stop stops the background work and waits for it. A sync in progress is
// canceled; batches it already committed are kept.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() {
		close(idx.stopChan)
		idx.cancel()

		idx.debounceMu.Lock()
		for path, timer := range idx.debounce {
			timer.Stop()
			delete(idx.debounce, path)
		}
		idx.debounceMu.Unlock()

		if w := idx.watcher(); w != nil {
			if err := w.close(); err != nil {
				logging.Warn("Failed to close filesystem watcher: %v", err)
			}
		}
		idx.wg.Wait()
		logging.Info("Indexer stopped")
	})
}

func (idx *Indexer) periodicSync() {
	defer idx.wg.Done()
	ticker := time.NewTicker(idx.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic sync triggered")
			if _, err := idx.FullSync(idx.ctx); err != nil {
				logging.Error("Periodic sync failed: %v", err)
			}
		case <-idx.stopChan:
			return
		}
	}
}

// TriggerFullSync starts a full sync in the background.
func (idx *Indexer) TriggerFullSync() error {
	if idx.IsSyncing() {
		return ErrSyncInProgress
	}
	select {
	case <-idx.stopChan:
		return ErrStopped
	default:
	}

	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		if _, err := idx.FullSync(idx.ctx); err != nil {
			logging.Error("Manually triggered sync failed: %v", err)
		}
	}()
	return nil
}

// IsSyncing reports whether a sync is running.
func (idx *Indexer) IsSyncing() bool {
	idx.stateMu.Lock()
	defer idx.stateMu.Unlock()
	return idx.syncing
}

// IsReady reports whether a full sync has completed, so queries see the
// whole library.
func (idx *Indexer) IsReady() bool {
	idx.stateMu.Lock()
	defer idx.stateMu.Unlock()
	return idx.status.InitialSyncComplete
}

// Status returns a copy of the current status.
func (idx *Indexer) Status() Status {
	idx.stateMu.Lock()
	st := idx.status
	st.Syncing = idx.syncing
	w := idx.watch
	idx.stateMu.Unlock()

	st.Ready = st.InitialSyncComplete
	st.StartTime = idx.startTime
	st.Uptime = time.Since(idx.startTime).Round(time.Second).String()
	if w != nil {
		st.WatchedDirectories = w.count()
	}
	return st
}

func (idx *Indexer) watcher() *watcher {
	idx.stateMu.Lock()
	defer idx.stateMu.Unlock()
	return idx.watch
}
