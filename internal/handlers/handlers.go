package handlers

import (
	"music-library/internal/database"
	"music-library/internal/indexer"
	"music-library/internal/startup"
)

// Handlers serves the library API.
type Handlers struct {
	db          *database.Database
	indexer     *indexer.Indexer
	searchLimit int
}

// New creates the handlers. config may be nil in tests.
func New(db *database.Database, idx *indexer.Indexer, config *startup.Config) *Handlers {
	limit := database.DefaultSearchLimit
	if config != nil && config.SearchLimit > 0 {
		limit = config.SearchLimit
	}
	return &Handlers{
		db:          db,
		indexer:     idx,
		searchLimit: limit,
	}
}
