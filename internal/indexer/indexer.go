package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"music-library/internal/database"
	"music-library/internal/diff"
	"music-library/internal/filesystem"
	"music-library/internal/logging"
	"music-library/internal/metrics"
	"music-library/internal/progress"
	"music-library/internal/replica"
)

// DefaultAutosaveInterval is the number of inserts committed per batch.
const DefaultAutosaveInterval = 100

// VacuumThreshold is the number of removed rows after which a sync compacts
// the database file.
const VacuumThreshold = 10000

var (
	// ErrRootMissing is returned by any sync while the library root does
	// not exist. The store is left untouched instead of being emptied.
	ErrRootMissing = errors.New("library root does not exist")
	// ErrOutsideRoot is returned for partial sync paths that are not below
	// the library root.
	ErrOutsideRoot = errors.New("path is outside the library root")
	// ErrSyncInProgress is returned when a sync is triggered while another
	// one is running.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrStopped is returned when a sync is triggered after Stop.
	ErrStopped = errors.New("indexer stopped")
)

// Sync kinds used in logs and metric labels.
const (
	KindFull    = "full"
	KindPartial = "partial"
)

// Options configures an Indexer.
type Options struct {
	// AutosaveInterval commits the running transaction after this many
	// inserts. Batches committed before a failure stay committed. Zero runs
	// every sync in a single transaction.
	AutosaveInterval int

	// Reporter receives hierarchical progress events. It may be nil.
	Reporter progress.Reporter

	// OnSyncComplete is called after every successful sync.
	OnSyncComplete func(kind string, result Result)

	// Retry configures filesystem retries on stale NFS handles.
	Retry filesystem.RetryConfig

	// Interval between periodic full syncs. Zero disables them.
	Interval time.Duration

	// Watch enables filesystem notifications feeding partial syncs.
	Watch bool

	// Debounce is how long a changed directory must stay quiet before it
	// is synced.
	Debounce time.Duration

	// PollInterval enables change polling of the top-level directories for
	// filesystems without notifications. Zero disables polling.
	PollInterval time.Duration

	// Backpressure is consulted after every committed batch. It may be nil.
	Backpressure Backpressure
}

// Backpressure holds a sync back between batches, for example while memory
// is short. Wait returns an error only if ctx ends.
type Backpressure interface {
	Wait(ctx context.Context) error
}

// DefaultOptions returns the options used by the server.
func DefaultOptions() Options {
	return Options{
		AutosaveInterval: DefaultAutosaveInterval,
		Reporter:         progress.LogReporter{MaxLevel: 2},
		Retry:            filesystem.DefaultRetryConfig(),
		Interval:         time.Hour,
		Watch:            true,
		Debounce:         2 * time.Second,
	}
}

// Result counts the files rows a sync added and removed.
type Result struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Indexer keeps the store in line with the library directory.
type Indexer struct {
	db      *database.Database
	base    string
	engine  *diff.Engine
	opts    Options
	replica *replica.Holder

	// held for the whole of a sync; syncs are the only writers
	syncMu sync.Mutex

	stateMu    sync.Mutex
	syncing    bool
	status     Status
	startTime  time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	watch      *watcher
	pollState  pollState
	debounceMu sync.Mutex
	debounce   map[string]*time.Timer
}

// New creates an indexer for the library rooted at base.
func New(db *database.Database, base string, opts Options) *Indexer {
	engine := diff.NewEngine(base, opts.Retry)
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		db:        db,
		base:      engine.Base,
		engine:    engine,
		opts:      opts,
		replica:   replica.NewHolder(),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		debounce:  make(map[string]*time.Timer),
	}
}

// Base returns the absolute library root.
func (idx *Indexer) Base() string {
	return idx.base
}

// Replica returns the holder of the replica rebuilt after every sync.
func (idx *Indexer) Replica() *replica.Holder {
	return idx.replica
}

// FullSync brings the whole store in line with the library directory.
func (idx *Indexer) FullSync(ctx context.Context) (Result, error) {
	if err := idx.checkRoot(KindFull); err != nil {
		return Result{}, err
	}
	return idx.run(ctx, KindFull, func(s *session, prog *progress.Tree) error {
		return idx.engine.Walk(ctx, "", s, prog, s.visit)
	})
}

// PartialSync brings the given paths and everything below them in line with
// the library directory. Paths are absolute or relative to the root. Stored
// ancestors that are missing are registered first.
func (idx *Indexer) PartialSync(ctx context.Context, paths ...string) (Result, error) {
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := idx.relative(p)
		if err != nil {
			metrics.SyncRunsTotal.WithLabelValues(KindPartial, "error").Inc()
			return Result{}, err
		}
		rels = append(rels, rel)
	}
	// below a missing root every stored path would look removed
	if err := idx.checkRoot(KindPartial); err != nil {
		return Result{}, err
	}

	return idx.run(ctx, KindPartial, func(s *session, prog *progress.Tree) error {
		for _, rel := range rels {
			if err := s.registerAncestors(rel, prog); err != nil {
				return err
			}
			if err := idx.engine.Walk(ctx, rel, s, prog, s.visit); err != nil {
				return err
			}
		}
		return nil
	})
}

// checkRoot fails with ErrRootMissing unless the library root is a
// directory. The failure is recorded like a failed sync.
func (idx *Indexer) checkRoot(kind string) error {
	info, err := filesystem.StatWithRetry(idx.base, idx.opts.Retry)
	if err == nil && info.IsDir() {
		return nil
	}
	logging.Error("Library root %s is not available, refusing %s sync", idx.base, kind)
	err = fmt.Errorf("%s: %w", idx.base, ErrRootMissing)
	idx.finish(kind, time.Now(), Result{}, err)
	return err
}

// relative converts p to a clean path relative to the root.
func (idx *Indexer) relative(p string) (string, error) {
	rel := filepath.Clean(p)
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(idx.base, rel)
		if err != nil {
			return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
		}
		rel = r
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	if rel == "." {
		rel = ""
	}
	return rel, nil
}

// run executes body inside a sync session and publishes the outcome.
func (idx *Indexer) run(ctx context.Context, kind string, body func(*session, *progress.Tree) error) (Result, error) {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()

	idx.setSyncing(true)
	defer idx.setSyncing(false)
	metrics.SyncIsRunning.Set(1)
	defer metrics.SyncIsRunning.Set(0)

	start := time.Now()
	logging.Info("Starting %s sync of %s", kind, idx.base)

	tx, err := idx.db.BeginBatch(ctx)
	if err != nil {
		idx.finish(kind, start, Result{}, err)
		return Result{}, fmt.Errorf("begin sync: %w", err)
	}

	s := &session{idx: idx, ctx: ctx, tx: tx}
	prog := progress.New(kind+" sync", idx.opts.Reporter)
	err = body(s, prog)
	if s.tx != nil {
		err = idx.db.EndBatch(s.tx, err)
	}

	if err != nil {
		if s.commits > 0 {
			logging.Warn("%s sync failed after %d committed batches; those changes are kept", kind, s.commits)
			idx.refresh(context.WithoutCancel(ctx))
		}
		idx.finish(kind, start, Result{}, err)
		return Result{}, fmt.Errorf("%s sync: %w", kind, err)
	}

	if s.result.Removed >= VacuumThreshold {
		logging.Info("Removed %d entries, compacting database", s.result.Removed)
		if err := idx.db.Vacuum(ctx); err != nil {
			logging.Warn("Failed to vacuum database: %v", err)
		}
	}
	if err := idx.db.RecountOccurrences(ctx); err != nil {
		logging.Warn("Failed to recount word occurrences: %v", err)
	}
	idx.refresh(ctx)
	idx.finish(kind, start, s.result, nil)

	logging.Info("%s sync complete in %v: %d added, %d removed",
		kind, time.Since(start).Round(time.Millisecond), s.result.Added, s.result.Removed)

	if idx.opts.OnSyncComplete != nil {
		idx.opts.OnSyncComplete(kind, s.result)
	}
	return s.result, nil
}

// refresh rebuilds the replica and the cached statistics, then points the
// change detectors at the new directory set.
func (idx *Indexer) refresh(ctx context.Context) {
	snap, err := idx.db.LoadReplica(ctx)
	if err != nil {
		logging.Error("Failed to rebuild replica: %v", err)
	} else {
		idx.replica.Swap(snap)
	}
	if _, err := idx.db.CalculateStats(ctx); err != nil {
		logging.Warn("Failed to calculate library stats: %v", err)
	}

	if w := idx.watcher(); w != nil {
		w.reconcile(idx.replica.Current().DirPaths())
	}
	if idx.opts.PollInterval > 0 {
		idx.pollState.update(idx.base, idx.opts.Retry)
	}
}

func (idx *Indexer) finish(kind string, start time.Time, result Result, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SyncRunsTotal.WithLabelValues(kind, status).Inc()
	metrics.SyncDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.SyncEntriesAdded.Add(float64(result.Added))
		metrics.SyncEntriesRemoved.Add(float64(result.Removed))
		metrics.SyncLastRunTimestamp.Set(float64(time.Now().Unix()))
	}

	idx.stateMu.Lock()
	defer idx.stateMu.Unlock()
	idx.status.LastKind = kind
	idx.status.LastDuration = time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		idx.status.LastError = err.Error()
		return
	}
	idx.status.LastError = ""
	idx.status.LastResult = result
	idx.status.LastSync = time.Now()
	if kind == KindFull {
		idx.status.InitialSyncComplete = true
	}
}

func (idx *Indexer) setSyncing(v bool) {
	idx.stateMu.Lock()
	idx.syncing = v
	idx.stateMu.Unlock()
}
