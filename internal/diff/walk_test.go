package diff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"testing"

	"music-library/internal/filesystem"
	"music-library/internal/progress"
	"music-library/internal/tree"
)

// memStore is an in-memory stored tree.
type memStore struct {
	next int64
	rows map[int64]memRow
}

type memRow struct {
	parent int64
	base   string
	isDir  bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]memRow)}
}

func (m *memStore) add(parent int64, base string, isDir bool) int64 {
	m.next++
	m.rows[m.next] = memRow{parent: parent, base: base, isDir: isDir}
	return m.next
}

func (m *memStore) Children(_ context.Context, parent *tree.File) ([]*tree.File, error) {
	if !parent.Persisted() && !parent.IsRoot() {
		return nil, nil
	}
	var out []*tree.File
	for id, r := range m.rows {
		if r.parent == parent.ID {
			out = append(out, &tree.File{Parent: parent, Basename: r.base, IsDir: r.isDir, ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Basename < out[j].Basename })
	return out, nil
}

func (m *memStore) Lookup(ctx context.Context, parent *tree.File, basename string) (*tree.File, error) {
	kids, _ := m.Children(ctx, parent)
	for _, k := range kids {
		if k.Basename == basename {
			return k, nil
		}
	}
	return nil, nil
}

// mkfiles creates the given relative paths below base; a trailing slash
// creates a directory.
func mkfiles(t *testing.T, base string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(base, p)
		if strings.HasSuffix(p, "/") {
			if err := os.MkdirAll(full, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type visit struct {
	path string
	kind Kind
}

func collect(t *testing.T, e *Engine, relpath string, store Store) []visit {
	t.Helper()
	var got []visit
	err := e.Walk(context.Background(), relpath, store, nil, func(r *Record) error {
		got = append(got, visit{r.Path(), r.Kind()})
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() failed: %v", err)
	}
	return got
}

func assertVisits(t *testing.T, got, want []visit) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("visits = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("visit[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWalkEmptyStore(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "a.mp3", "sub/b.mp3")
	e := NewEngine(base, filesystem.DefaultRetryConfig())

	got := collect(t, e, "", newMemStore())
	assertVisits(t, got, []visit{
		{"", Unchanged},
		{"a.mp3", Added},
		{"sub", Added},
		{filepath.Join("sub", "b.mp3"), Added},
	})
}

func TestWalkMergesByBasename(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "a.mp3", "sub/", "new.ogg")
	store := newMemStore()
	store.add(tree.RootID, "a.mp3", false)
	store.add(tree.RootID, "old.mp3", false)
	store.add(tree.RootID, "sub", false)

	got := collect(t, NewEngine(base, filesystem.DefaultRetryConfig()), "", store)
	assertVisits(t, got, []visit{
		{"", Unchanged},
		{"a.mp3", Unchanged},
		{"new.ogg", Added},
		{"old.mp3", Removed},
		{"sub", TypeChanged},
	})
}

func TestWalkStoredChildrenAfterVisit(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "keep/")
	store := newMemStore()
	gone := store.add(tree.RootID, "gone", true)
	store.add(gone, "x.mp3", false)

	var got []visit
	err := NewEngine(base, filesystem.DefaultRetryConfig()).Walk(context.Background(), "", store, nil,
		func(r *Record) error {
			got = append(got, visit{r.Path(), r.Kind()})
			if r.Kind() == Removed {
				f, _ := r.InStore.Get()
				delete(store.rows, f.ID)
				f.ID = tree.NoID
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Walk() failed: %v", err)
	}
	assertVisits(t, got, []visit{
		{"", Unchanged},
		{"gone", Removed},
		{"keep", Added},
	})
}

func TestWalkSkipChildren(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "sub/b.mp3", "z.mp3")

	var got []string
	err := NewEngine(base, filesystem.DefaultRetryConfig()).Walk(context.Background(), "", newMemStore(), nil,
		func(r *Record) error {
			got = append(got, r.Path())
			if r.Path() == "sub" {
				return SkipChildren
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Walk() = %v, SkipChildren must not escape", err)
	}
	if strings.Join(got, ",") != ",sub,z.mp3" {
		t.Errorf("visited %v", got)
	}
}

func TestWalkVisitorError(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "a.mp3")
	boom := errors.New("boom")

	err := NewEngine(base, filesystem.DefaultRetryConfig()).Walk(context.Background(), "", newMemStore(), nil,
		func(r *Record) error {
			if r.Path() == "a.mp3" {
				return boom
			}
			return nil
		})
	if !errors.Is(err, boom) {
		t.Errorf("Walk() = %v, want %v", err, boom)
	}
}

func TestWalkCanceled(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "a.mp3")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewEngine(base, filesystem.DefaultRetryConfig()).Walk(ctx, "", newMemStore(), nil,
		func(*Record) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Walk() = %v, want %v", err, context.Canceled)
	}
}

func TestWalkStartRecord(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "artist/album/01.mp3")
	store := newMemStore()
	artist := store.add(tree.RootID, "artist", true)

	e := NewEngine(base, filesystem.DefaultRetryConfig())

	var first *Record
	err := e.Walk(context.Background(), "artist/album", store, nil, func(r *Record) error {
		if first == nil {
			first = r
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() failed: %v", err)
	}
	if first.Kind() != Added || first.Path() != filepath.Join("artist", "album") {
		t.Fatalf("first record = %v %q", first.Kind(), first.Path())
	}
	disk, _ := first.OnDisk.Get()
	if disk.Parent == nil || disk.Parent.ID != artist {
		t.Errorf("start node parent = %+v, want stored artist %d", disk.Parent, artist)
	}

	missing := collect(t, e, "nope/deeper", store)
	assertVisits(t, missing, []visit{{"", Missing}})
}

func TestWalkRootMissingOnDisk(t *testing.T) {
	base := filepath.Join(t.TempDir(), "gone")
	store := newMemStore()
	store.add(tree.RootID, "a.mp3", false)

	got := collect(t, NewEngine(base, filesystem.DefaultRetryConfig()), "", store)
	assertVisits(t, got, []visit{{"", Missing}})
}

func TestWalkUnlistableDirectoryKeepsStored(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "a.mp3", "sub/b.mp3")
	store := newMemStore()
	store.add(tree.RootID, "a.mp3", false)
	sub := store.add(tree.RootID, "sub", true)
	store.add(sub, "b.mp3", false)

	e := NewEngine(base, filesystem.DefaultRetryConfig())
	e.readDir = func(path string, config filesystem.RetryConfig) ([]os.DirEntry, error) {
		if path == base {
			return nil, &os.PathError{Op: "open", Path: path, Err: syscall.EIO}
		}
		return filesystem.ReadDirWithRetry(path, config)
	}
	assertVisits(t, collect(t, e, "", store), []visit{{"", Unchanged}})

	got := collect(t, e, "sub", store)
	assertVisits(t, got, []visit{
		{"sub", Unchanged},
		{filepath.Join("sub", "b.mp3"), Unchanged},
	})

	e.readDir = func(path string, _ filesystem.RetryConfig) ([]os.DirEntry, error) {
		return nil, &os.PathError{Op: "open", Path: path, Err: syscall.ENOENT}
	}
	assertVisits(t, collect(t, e, "sub", store), []visit{
		{"sub", Unchanged},
		{filepath.Join("sub", "b.mp3"), Removed},
	})
}

func TestWalkSymlinkSafety(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	mkfiles(t, base, "sub/b.mp3")
	mkfiles(t, outside, "ext.mp3")

	links := map[string]string{
		"loop":          base,
		"parent":        filepath.Dir(base),
		"external":      outside,
		"sub/up":        filepath.Join(base, "sub"),
		"sub/nested":    outside,
		"sub/track.mp3": filepath.Join(base, "sub", "b.mp3"),
		"dangling.mp3":  filepath.Join(base, "missing.mp3"),
	}
	for link, target := range links {
		if err := os.Symlink(target, filepath.Join(base, link)); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
	}

	got := collect(t, NewEngine(base, filesystem.DefaultRetryConfig()), "", newMemStore())
	var paths []string
	for _, v := range got {
		paths = append(paths, v.path)
	}
	want := []string{
		"",
		"external",
		filepath.Join("external", "ext.mp3"),
		"sub",
		filepath.Join("sub", "b.mp3"),
		filepath.Join("sub", "track.mp3"),
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("visited %v, want %v", paths, want)
	}
}

func TestWalkSkipsInvalidNames(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "ok.mp3")
	if err := os.WriteFile(filepath.Join(base, "bad\xff.mp3"), nil, 0o644); err != nil {
		t.Skipf("filesystem rejects non UTF-8 names: %v", err)
	}

	got := collect(t, NewEngine(base, filesystem.DefaultRetryConfig()), "", newMemStore())
	assertVisits(t, got, []visit{
		{"", Unchanged},
		{"ok.mp3", Added},
	})
}

func TestWalkProgress(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "a.mp3", "sub/b.mp3", "sub/c.mp3")

	var events int
	prog := progress.New("sync", progress.ReporterFunc(func(progress.Event) { events++ }))
	records := 0
	err := NewEngine(base, filesystem.DefaultRetryConfig()).Walk(context.Background(), "", newMemStore(), prog,
		func(r *Record) error {
			records++
			defer r.Progress.Tick()
			return nil
		})
	if err != nil {
		t.Fatalf("Walk() failed: %v", err)
	}
	if prog.Total() != records || prog.Done() != records {
		t.Errorf("progress = %d/%d, want %d/%d", prog.Done(), prog.Total(), records, records)
	}
	if events == 0 {
		t.Error("reporter received no events")
	}
}

func TestRecordKind(t *testing.T) {
	file := &tree.File{Basename: "x"}
	dir := &tree.File{Basename: "x", IsDir: true}

	tests := []struct {
		disk, stored Side
		want         Kind
	}{
		{Present(file), Present(file), Unchanged},
		{Present(dir), Present(file), TypeChanged},
		{Absent(), Present(file), Removed},
		{Present(file), Absent(), Added},
		{Absent(), Absent(), Missing},
	}
	for _, tt := range tests {
		r := &Record{OnDisk: tt.disk, InStore: tt.stored}
		if got := r.Kind(); got != tt.want {
			t.Errorf("Kind() = %v, want %v", got, tt.want)
		}
	}
}
