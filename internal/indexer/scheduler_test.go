package indexer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"music-library/internal/filesystem"
)

func TestStartStop(t *testing.T) {
	idx, db, base := setupIndexer(t, testOptions())
	mkfiles(t, base, "a.mp3")

	if err := idx.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitFor(t, "initial sync", idx.IsReady)

	st := idx.Status()
	if !st.Ready || st.LastKind != KindFull || st.LastResult.Added != 1 {
		t.Errorf("Status() = %+v", st)
	}
	if stored(t, db, "a.mp3") == nil {
		t.Error("initial sync did not register a.mp3")
	}

	idx.Stop()
	idx.Stop()
	if err := idx.TriggerFullSync(); !errors.Is(err, ErrStopped) {
		t.Errorf("TriggerFullSync() after Stop = %v, want %v", err, ErrStopped)
	}
}

func TestTriggerFullSync(t *testing.T) {
	idx, db, base := setupIndexer(t, testOptions())
	mkfiles(t, base, "sub/b.mp3")

	if idx.IsReady() {
		t.Fatal("IsReady() = true before any sync")
	}
	if err := idx.TriggerFullSync(); err != nil {
		t.Fatalf("TriggerFullSync() failed: %v", err)
	}
	waitFor(t, "triggered sync", idx.IsReady)
	if stored(t, db, "sub/b.mp3") == nil {
		t.Error("triggered sync did not register sub/b.mp3")
	}
}

func TestTriggerWhileSyncing(t *testing.T) {
	idx, _, _ := setupIndexer(t, testOptions())

	idx.setSyncing(true)
	defer idx.setSyncing(false)
	if err := idx.TriggerFullSync(); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("TriggerFullSync() = %v, want %v", err, ErrSyncInProgress)
	}
	if !idx.Status().Syncing {
		t.Error("Status().Syncing = false")
	}
}

func TestStatusJSON(t *testing.T) {
	idx, _, _ := setupIndexer(t, testOptions())

	data, err := json.Marshal(idx.Status())
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"ready", "syncing", "startTime", "uptime", "lastResult"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("status JSON is missing %q: %s", key, data)
		}
	}
	if _, ok := decoded["lastError"]; ok {
		t.Errorf("empty lastError was not omitted: %s", data)
	}
}

func TestWatcherSyncsChanges(t *testing.T) {
	opts := testOptions()
	opts.Watch = true
	opts.Debounce = 50 * time.Millisecond
	idx, db, base := setupIndexer(t, opts)
	mkfiles(t, base, "sub/b.mp3")

	if err := idx.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if idx.watcher() == nil {
		t.Skip("filesystem notifications not available")
	}
	waitFor(t, "initial sync", idx.IsReady)
	if got := idx.Status().WatchedDirectories; got != 2 {
		t.Errorf("WatchedDirectories = %d, want 2", got)
	}

	mkfiles(t, base, "sub/new song.mp3")
	waitFor(t, "created file", func() bool { return stored(t, db, "sub/new song.mp3") != nil })

	if err := os.Remove(filepath.Join(base, "sub", "b.mp3")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "removed file", func() bool { return stored(t, db, "sub/b.mp3") == nil })

	mkfiles(t, base, "album/01.mp3")
	waitFor(t, "created directory", func() bool { return stored(t, db, "album/01.mp3") != nil })
}

func TestWatcherReconcile(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "a/b/", "c/")

	w, err := newWatcher(base)
	if err != nil {
		t.Skipf("filesystem notifications not available: %v", err)
	}
	defer w.close()

	w.reconcile([]string{"a", "a/b", "c"})
	if got := w.count(); got != 4 {
		t.Errorf("count() = %d, want 4", got)
	}
	w.reconcile([]string{"a"})
	if got := w.count(); got != 2 {
		t.Errorf("count() = %d, want 2", got)
	}
	w.add("c")
	w.add("c")
	if got := w.count(); got != 3 {
		t.Errorf("count() = %d, want 3", got)
	}
}

func TestEventType(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, "create"},
		{fsnotify.Create | fsnotify.Write, "create"},
		{fsnotify.Write, "write"},
		{fsnotify.Remove, "remove"},
		{fsnotify.Rename, "rename"},
		{fsnotify.Chmod, "chmod"},
	}
	for _, tt := range tests {
		if got := eventType(tt.op); got != tt.want {
			t.Errorf("eventType(%v) = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestPollStateChanges(t *testing.T) {
	base := t.TempDir()
	mkfiles(t, base, "old/x.mp3", "gone.mp3", "same/")
	retry := filesystem.DefaultRetryConfig()

	var p pollState
	if changed, err := p.changes(base, retry); err != nil || changed != nil {
		t.Errorf("changes() before update = %v, %v, want nothing", changed, err)
	}
	p.update(base, retry)

	mkfiles(t, base, "new/")
	if err := os.Remove(filepath.Join(base, "gone.mp3")); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	for _, dir := range []string{base, filepath.Join(base, "old")} {
		if err := os.Chtimes(dir, future, future); err != nil {
			t.Fatal(err)
		}
	}

	changed, err := p.changes(base, retry)
	if err != nil {
		t.Fatalf("changes() failed: %v", err)
	}
	sort.Strings(changed)
	if strings.Join(changed, ",") != "gone.mp3,new,old" {
		t.Errorf("changes() = %v, want [gone.mp3 new old]", changed)
	}
}

func TestPollForChanges(t *testing.T) {
	opts := testOptions()
	opts.PollInterval = 50 * time.Millisecond
	idx, db, base := setupIndexer(t, opts)
	mkfiles(t, base, "a.mp3")

	if err := idx.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitFor(t, "initial sync", idx.IsReady)

	mkfiles(t, base, "late/x.mp3")
	waitFor(t, "polled change", func() bool { return stored(t, db, "late/x.mp3") != nil })
}
