package handlers

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"music-library/internal/database"
	"music-library/internal/mediatypes"
)

// BrowseResponse lists one directory of the library.
type BrowseResponse struct {
	Path    string                `json:"path"`
	Entries []database.MediaEntry `json:"entries"`
	AsOf    time.Time             `json:"asOf"`
}

// Browse lists a directory from the in-memory replica. The listing reflects
// the library as of the last completed sync.
func (h *Handlers) Browse(w http.ResponseWriter, r *http.Request) {
	dir := strings.Trim(path.Clean("/"+mux.Vars(r)["path"]), "/")

	snap := h.indexer.Replica().Current()
	node, ok := snap.Lookup(dir)
	if !ok {
		writeJSONError(w, "Directory not found", http.StatusNotFound)
		return
	}
	if !node.IsDir {
		writeJSONError(w, "Not a directory", http.StatusBadRequest)
		return
	}

	children := snap.Children(node.ID)
	response := BrowseResponse{
		Path:    dir,
		Entries: make([]database.MediaEntry, 0, len(children)),
		AsOf:    snap.BuiltAt(),
	}
	for _, c := range children {
		relpath := path.Join(dir, c.Basename())
		response.Entries = append(response.Entries, database.MediaEntry{
			ID:          c.ID,
			Path:        relpath,
			IsDirectory: c.IsDir,
			Type:        mediatypes.Classify(relpath, c.IsDir),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
