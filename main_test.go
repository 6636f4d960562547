package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"music-library/internal/database"
	"music-library/internal/handlers"
	"music-library/internal/indexer"
	"music-library/internal/startup"
)

func setupTestRouter(t *testing.T) (*mux.Router, *indexer.Indexer) {
	t.Helper()

	library := t.TempDir()
	if err := os.MkdirAll(filepath.Join(library, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(library, "sub", "song.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	config := &startup.Config{
		LibraryDir:       library,
		AutosaveInterval: 10,
		SearchLimit:      20,
	}
	opts := indexerOptions(config)
	opts.Reporter = nil
	idx := indexer.New(db, library, opts)
	t.Cleanup(idx.Stop)
	if _, err := idx.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync() failed: %v", err)
	}

	return setupRouter(handlers.New(db, idx, config)), idx
}

func TestIndexerOptions(t *testing.T) {
	config := &startup.Config{
		SyncInterval:     5 * time.Minute,
		PollInterval:     time.Minute,
		WatchEnabled:     false,
		WatchDebounce:    time.Second,
		AutosaveInterval: 7,
	}

	opts := indexerOptions(config)
	if opts.Interval != config.SyncInterval || opts.PollInterval != config.PollInterval {
		t.Errorf("intervals = %v/%v", opts.Interval, opts.PollInterval)
	}
	if opts.Watch || opts.Debounce != time.Second || opts.AutosaveInterval != 7 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.OnSyncComplete == nil {
		t.Error("OnSyncComplete not set")
	}
}

func TestSetupRouter(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		method string
		target string
		status int
		body   string
	}{
		{"GET", "/health", http.StatusOK, `"healthy"`},
		{"GET", "/livez", http.StatusOK, "alive"},
		{"GET", "/readyz", http.StatusOK, "ready"},
		{"GET", "/version", http.StatusOK, startup.Version},
		{"GET", "/api/search?q=song", http.StatusOK, "sub/song.mp3"},
		{"GET", "/api/random?count=2", http.StatusOK, "sub/song.mp3"},
		{"GET", "/api/browse", http.StatusOK, `"sub"`},
		{"GET", "/api/browse/", http.StatusOK, `"sub"`},
		{"GET", "/api/browse/sub", http.StatusOK, "sub/song.mp3"},
		{"GET", "/api/browse/missing", http.StatusNotFound, "not found"},
		{"GET", "/api/stats", http.StatusOK, `"files":1`},
		{"POST", "/api/sync", http.StatusOK, `"added":0`},
		{"GET", "/api/sync", http.StatusMethodNotAllowed, ""},
		{"GET", "/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			var body *strings.Reader
			if tt.method == "POST" {
				body = strings.NewReader(`{"paths":["sub"]}`)
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.target, body)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body = %s, want it to contain %s", w.Body.String(), tt.body)
			}
		})
	}
}

func TestRoutesListed(t *testing.T) {
	router, _ := setupTestRouter(t)

	routes, err := startup.GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() failed: %v", err)
	}
	paths := make(map[string]bool)
	for _, r := range routes {
		paths[r.Path] = true
	}
	for _, want := range []string{"/health", "/api/search", "/api/random", "/api/browse/{path:.*}", "/api/sync", "/api/stats"} {
		if !paths[want] {
			t.Errorf("route %s missing from %v", want, routes)
		}
	}
}

func TestWrapHandler(t *testing.T) {
	router, _ := setupTestRouter(t)
	handler := wrapHandler(router, &startup.Config{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/search?q=song", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "song.mp3") {
		t.Errorf("body = %s", w.Body.String())
	}
}
