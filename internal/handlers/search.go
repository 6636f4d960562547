package handlers

import (
	"net/http"
	"strings"

	"music-library/internal/database"
	"music-library/internal/logging"
)

// SearchResponse is the body of a search.
type SearchResponse struct {
	Query   string                `json:"query"`
	Mode    string                `json:"mode"`
	Results []database.MediaEntry `json:"results"`
}

// Search returns the entries with a word starting with any word of q, those
// matching the most words first. A leading or trailing !f or !d restricts
// results to files or directories.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := intParam(r, "limit", h.searchLimit, h.searchLimit)
	_, mode := database.ParseQuery(query)

	response := SearchResponse{Query: query, Mode: mode.String(), Results: []database.MediaEntry{}}
	if query != "" {
		results, err := h.db.Search(r.Context(), query, limit)
		if err != nil {
			logging.Error("Search for %q failed: %v", query, err)
			writeJSONError(w, "Search failed", http.StatusInternalServerError)
			return
		}
		response.Results = results
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// Random returns up to count uniformly sampled files.
func (h *Handlers) Random(w http.ResponseWriter, r *http.Request) {
	count := intParam(r, "count", 1, database.MaxRandomCount)

	entries, err := h.db.RandomFileEntries(r.Context(), count)
	if err != nil {
		logging.Error("Random sampling failed: %v", err)
		writeJSONError(w, "Random sampling failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []database.MediaEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, entries)
}
