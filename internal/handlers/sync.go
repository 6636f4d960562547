package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"music-library/internal/database"
	"music-library/internal/indexer"
	"music-library/internal/logging"
)

// maxSyncBody bounds the size of a sync request body.
const maxSyncBody = 1 << 20

// SyncRequest is the optional body of a sync request.
type SyncRequest struct {
	Paths []string `json:"paths"`
}

// TriggerSync starts a full sync in the background when no paths are given,
// or runs a partial sync of the given paths and returns its result.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSyncBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Paths) == 0 {
		switch err := h.indexer.TriggerFullSync(); {
		case errors.Is(err, indexer.ErrSyncInProgress):
			writeJSONError(w, err.Error(), http.StatusConflict)
		case err != nil:
			writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			writeJSONStatus(w, "started", http.StatusAccepted)
		}
		return
	}

	result, err := h.indexer.PartialSync(r.Context(), req.Paths...)
	switch {
	case errors.Is(err, indexer.ErrOutsideRoot):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, indexer.ErrRootMissing):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		logging.Error("Partial sync of %v failed: %v", req.Paths, err)
		writeJSONError(w, "Sync failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// StatsResponse combines store statistics with the sync state.
type StatsResponse struct {
	Library database.Stats `json:"library"`
	Sync    indexer.Status `json:"sync"`
}

// GetStats returns library statistics as of the last sync.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, StatsResponse{
		Library: h.db.GetStats(),
		Sync:    h.indexer.Status(),
	})
}
