package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"music-library/internal/diff"
	"music-library/internal/logging"
	"music-library/internal/metrics"
	"music-library/internal/progress"
	"music-library/internal/tree"
)

// session is the state of one sync call. It is the stored side of the diff
// walk and reads through the open transaction, so rows written earlier in
// the same sync are visible.
type session struct {
	idx     *Indexer
	ctx     context.Context
	tx      *sql.Tx
	pending int
	commits int
	result  Result
}

func (s *session) Children(ctx context.Context, parent *tree.File) ([]*tree.File, error) {
	return s.idx.db.Children(ctx, s.tx, parent)
}

func (s *session) Lookup(ctx context.Context, parent *tree.File, basename string) (*tree.File, error) {
	return s.idx.db.Lookup(ctx, s.tx, parent, basename)
}

// visit applies one diff record to the store.
func (s *session) visit(r *diff.Record) error {
	disk, _ := r.OnDisk.Get()
	stored, _ := r.InStore.Get()

	switch r.Kind() {
	case diff.Unchanged:
		disk.ID = stored.ID

	case diff.TypeChanged:
		logging.Debug("Type of %q changed, replacing", r.Path())
		if err := s.remove(stored); err != nil {
			return err
		}
		if err := s.insert(disk); err != nil {
			return err
		}

	case diff.Removed:
		logging.Debug("Removing %q", r.Path())
		err := s.remove(stored)
		r.Progress.Tick()
		if err != nil {
			return err
		}
		return diff.SkipChildren

	case diff.Added:
		logging.Debug("Adding %q", r.Path())
		if err := s.insert(disk); err != nil {
			return err
		}

	case diff.Missing:
	}

	r.Progress.Tick()
	return nil
}

func (s *session) remove(f *tree.File) error {
	n, err := s.idx.db.RemoveRecursive(s.ctx, s.tx, f)
	s.result.Removed += n
	return err
}

func (s *session) insert(f *tree.File) error {
	if err := s.idx.db.RegisterFile(s.ctx, s.tx, f); err != nil {
		return err
	}
	s.result.Added++
	s.pending++
	return s.autosave()
}

// autosave commits the transaction every AutosaveInterval inserts and opens
// a new one. Committed batches survive a later failure of the same sync.
func (s *session) autosave() error {
	interval := s.idx.opts.AutosaveInterval
	if interval <= 0 || s.pending < interval {
		return nil
	}
	// a transaction is finished after Commit whatever its outcome
	tx := s.tx
	s.tx = nil
	if err := s.idx.db.EndBatch(tx, nil); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.pending = 0
	s.commits++
	metrics.SyncBatchCommits.Inc()

	if bp := s.idx.opts.Backpressure; bp != nil {
		if err := bp.Wait(s.ctx); err != nil {
			return err
		}
	}

	next, err := s.idx.db.BeginBatch(s.ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	s.tx = next
	logging.Debug("Committed batch %d (%d added so far)", s.commits, s.result.Added)
	return nil
}

// registerAncestors stores the directories above rel that exist on disk but
// not yet in the store, so rel can be registered below them.
func (s *session) registerAncestors(rel string, prog *progress.Tree) error {
	if rel == "" {
		return nil
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i := 1; i < len(segments); i++ {
		prefix := strings.Join(segments[:i], "/")
		err := s.idx.engine.Walk(s.ctx, prefix, s, prog, func(r *diff.Record) error {
			if err := s.visit(r); err != nil && !errors.Is(err, diff.SkipChildren) {
				return err
			}
			return diff.SkipChildren
		})
		if err != nil {
			return err
		}
	}
	return nil
}
