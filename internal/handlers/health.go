package handlers

import (
	"net/http"
	"runtime"
	"time"

	"music-library/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Syncing   bool   `json:"syncing"`
	LastSync  string `json:"lastSync,omitempty"`
	LastError string `json:"lastError,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalFiles       int `json:"totalFiles,omitempty"`
	TotalDirectories int `json:"totalDirectories,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := h.indexer.Status()
	stats := h.db.GetStats()

	response := HealthResponse{
		Ready:            status.Ready,
		Version:          startup.Version,
		Uptime:           status.Uptime,
		Syncing:          status.Syncing,
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
		TotalFiles:       stats.Files,
		TotalDirectories: stats.Directories,
	}

	switch {
	case status.LastError != "":
		response.LastError = status.LastError
		response.Status = statusDegraded
	case status.Ready:
		response.Status = statusHealthy
	default:
		response.Status = statusStarting
	}

	if !status.LastSync.IsZero() {
		response.LastSync = status.LastSync.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !status.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only once a full sync has completed
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsReady() {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}
