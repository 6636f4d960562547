package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"library":  "/music",
		"database": "/database",
		"live":     "/music/live",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/music", "library"},
		{"/music/Artist/Album/01.flac", "library"},
		{"/music/live/2001.mp3", "live"},
		{"/musicals/x", "unknown"},
		{"/database/library.db-wal", "database"},
		{"/", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	if got := NewVolumeResolver(map[string]string{"root": "/"}).Resolve("/etc"); got != "root" {
		t.Errorf("Resolve below / = %q, want root", got)
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/music"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

type countingObserver struct {
	operations int
	errors     int
	events     map[RetryEvent]int
}

func (o *countingObserver) ObserveOperation(_, _ string, _ time.Duration, err error) {
	o.operations++
	if err != nil {
		o.errors++
	}
}

func (o *countingObserver) ObserveRetry(_, _ string, event RetryEvent) {
	o.events[event]++
}

func TestWithRetry_RetriesOnlyStaleErrors(t *testing.T) {
	obs := &countingObserver{events: make(map[RetryEvent]int)}
	SetObserver(obs)
	defer SetObserver(nil)

	config := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	calls := 0
	_, err := withRetry("stat", "/x", config, func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("err = %v, want ESTALE", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", calls)
	}
	if obs.events[RetryStale] != 3 || obs.events[RetryBackoff] != 2 || obs.events[RetryFailure] != 1 {
		t.Errorf("retry events = %v, want 3 stale, 2 backoff, 1 failure", obs.events)
	}
	if obs.operations != 1 || obs.errors != 1 {
		t.Errorf("operations = %d, errors = %d, want 1 and 1", obs.operations, obs.errors)
	}

	calls = 0
	_, err = withRetry("stat", "/x", config, func() (int, error) {
		calls++
		return 0, os.ErrNotExist
	})
	if !errors.Is(err, os.ErrNotExist) || calls != 1 {
		t.Errorf("non-stale error: err = %v, calls = %d, want 1 call", err, calls)
	}

	calls = 0
	got, err := withRetry("stat", "/x", config, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, syscall.ESTALE
		}
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Errorf("recovered retry = (%d, %v), want (7, nil)", got, err)
	}
	if obs.events[RetrySuccess] != 1 {
		t.Errorf("success events = %d, want 1", obs.events[RetrySuccess])
	}
}

func TestListingHelpers(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "a"), filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	config := DefaultRetryConfig()

	entries, err := ReadDirWithRetry(dir, config)
	if err != nil {
		t.Fatalf("ReadDirWithRetry() error = %v", err)
	}
	if len(entries) != 3 || entries[0].Name() != "a" || entries[1].Name() != "b.mp3" {
		t.Errorf("entries not sorted or incomplete: %v", entries)
	}

	info, err := LstatWithRetry(filepath.Join(dir, "link"), config)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("LstatWithRetry() should report a symlink, got %v, %v", info, err)
	}

	info, err = StatWithRetry(filepath.Join(dir, "link"), config)
	if err != nil || !info.IsDir() {
		t.Errorf("StatWithRetry() should follow the symlink, got %v, %v", info, err)
	}

	target, err := EvalSymlinksWithRetry(filepath.Join(dir, "link"), config)
	if err != nil {
		t.Fatalf("EvalSymlinksWithRetry() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(filepath.Join(dir, "a"))
	if target != want {
		t.Errorf("EvalSymlinksWithRetry() = %q, want %q", target, want)
	}

	if _, err := StatWithRetry(filepath.Join(dir, "missing"), config); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}
}
