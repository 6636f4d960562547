package diff

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"music-library/internal/filesystem"
	"music-library/internal/logging"
	"music-library/internal/progress"
	"music-library/internal/tree"
)

// SkipChildren is returned by a Visitor to leave the children of the
// current record unvisited. It is not returned by Walk.
var SkipChildren = errors.New("skip children")

// Visitor is called once per record, parents before children. Any error
// other than SkipChildren stops the walk and is returned by Walk.
type Visitor func(r *Record) error

// Store is the stored side of the walk. Both methods see the caller's
// writes, so a subtree the visitor removed has no stored children.
type Store interface {
	// Children returns the stored children of parent.
	Children(ctx context.Context, parent *tree.File) ([]*tree.File, error)
	// Lookup returns the stored child of parent with the given basename,
	// or nil when there is none.
	Lookup(ctx context.Context, parent *tree.File, basename string) (*tree.File, error)
}

// Engine merges the filesystem below Base with the stored tree.
type Engine struct {
	Base  string
	Retry filesystem.RetryConfig

	baseOnce     sync.Once
	resolvedBase string

	// readDir lists a directory; nil means filesystem.ReadDirWithRetry
	readDir func(string, filesystem.RetryConfig) ([]os.DirEntry, error)
}

// NewEngine returns an engine for the library rooted at base.
func NewEngine(base string, retry filesystem.RetryConfig) *Engine {
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	return &Engine{Base: filepath.Clean(base), Retry: retry}
}

// Walk visits relpath and everything below it depth first. The first record
// is always relpath itself, even when it exists on neither side. Children of
// a record are computed after the visitor returns and are visited in
// basename order.
func (e *Engine) Walk(ctx context.Context, relpath string, store Store, prog *progress.Tree, fn Visitor) error {
	start, err := e.startRecord(ctx, relpath, store, prog)
	if err != nil {
		return err
	}

	stack := []*Record{start}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := fn(r); err != nil {
			if errors.Is(err, SkipChildren) {
				continue
			}
			return err
		}

		children, err := e.children(ctx, r, store)
		if err != nil {
			return err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil
}

// startRecord resolves relpath on both sides. The disk node is attached to
// the stored ancestors when they exist, so it can be registered directly.
func (e *Engine) startRecord(ctx context.Context, relpath string, store Store, prog *progress.Tree) (*Record, error) {
	relpath = strings.Trim(filepath.Clean("/"+relpath), "/")
	if relpath == "" {
		// a root that is gone from disk is absent on both sides, so nothing
		// below it is removed
		r := &Record{Progress: prog.Spawn("/")}
		if info, err := filesystem.StatWithRetry(e.Base, e.Retry); err == nil && info.IsDir() {
			r.OnDisk = Present(tree.NewRoot())
			r.InStore = Present(tree.NewRoot())
		} else {
			logging.Warn("Library root %s is not a directory, leaving the stored tree alone", e.Base)
		}
		return r, nil
	}

	segments := strings.Split(relpath, "/")
	parent := tree.NewRoot()
	storedParent := true
	for _, seg := range segments[:len(segments)-1] {
		var next *tree.File
		if storedParent {
			found, err := store.Lookup(ctx, parent, seg)
			if err != nil {
				return nil, fmt.Errorf("resolve %q: %w", relpath, err)
			}
			next = found
		}
		if next == nil {
			storedParent = false
			next = tree.New(parent, seg, true)
		}
		parent = next
	}

	r := &Record{Progress: prog.Spawn(relpath)}
	if ent, ok := e.admit(relpath); ok {
		r.OnDisk = Present(tree.New(parent, ent.name, ent.isDir))
	}
	if storedParent {
		stored, err := store.Lookup(ctx, parent, segments[len(segments)-1])
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", relpath, err)
		}
		if stored != nil {
			r.InStore = Present(stored)
		}
	}
	return r, nil
}

// children merges the disk listing and the stored children of r by
// basename.
func (e *Engine) children(ctx context.Context, r *Record, store Store) ([]*Record, error) {
	var diskKids []*tree.File
	if disk, ok := r.OnDisk.Get(); ok && disk.IsDir {
		kids, err := e.listDisk(disk)
		if err != nil {
			logging.Warn("Cannot list %q, keeping its stored entries: %v", disk.RelPath(), err)
			return nil, nil
		}
		diskKids = kids
	}

	var storedKids []*tree.File
	if stored, ok := r.InStore.Get(); ok && stored.IsDir {
		kids, err := store.Children(ctx, stored)
		if err != nil {
			return nil, fmt.Errorf("stored children of %q: %w", stored.RelPath(), err)
		}
		storedKids = kids
	}

	if len(diskKids) == 0 && len(storedKids) == 0 {
		return nil, nil
	}

	byName := make(map[string]*tree.File, len(storedKids))
	for _, s := range storedKids {
		byName[s.Basename] = s
	}

	records := make([]*Record, 0, len(diskKids)+len(storedKids))
	for _, d := range diskKids {
		rec := &Record{OnDisk: Present(d), Parent: r}
		if s, ok := byName[d.Basename]; ok {
			rec.InStore = Present(s)
			delete(byName, d.Basename)
		}
		records = append(records, rec)
	}
	for _, s := range storedKids {
		if _, ok := byName[s.Basename]; ok {
			records = append(records, &Record{InStore: Present(s), Parent: r})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].File().Basename < records[j].File().Basename
	})
	for _, rec := range records {
		rec.Progress = r.Progress.Spawn(rec.File().Basename)
	}
	return records, nil
}

// listDisk lists dir and returns the entries that pass the safety filter.
// A directory that vanished is empty; any other listing error is returned.
func (e *Engine) listDisk(dir *tree.File) ([]*tree.File, error) {
	rel := dir.RelPath()
	readDir := e.readDir
	if readDir == nil {
		readDir = filesystem.ReadDirWithRetry
	}
	entries, err := readDir(filepath.Join(e.Base, rel), e.Retry)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("Directory %q vanished while walking", rel)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	kids := make([]*tree.File, 0, len(entries))
	for _, de := range entries {
		ent, ok := e.admit(filepath.Join(rel, de.Name()))
		if !ok {
			continue
		}
		kids = append(kids, tree.New(dir, ent.name, ent.isDir))
	}
	return kids, nil
}
