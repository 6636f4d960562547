package database

import "music-library/internal/mediatypes"

// Mode restricts a search to files or directories.
type Mode int

const (
	ModeAll Mode = iota
	ModeFiles
	ModeDirs
)

// String returns the metrics label of the mode.
func (m Mode) String() string {
	switch m {
	case ModeFiles:
		return "files"
	case ModeDirs:
		return "dirs"
	default:
		return "normal"
	}
}

// MediaEntry is a resolved files row as handed to API consumers.
type MediaEntry struct {
	ID          int64               `json:"id"`
	Path        string              `json:"path"`
	IsDirectory bool                `json:"isDirectory"`
	Type        mediatypes.FileType `json:"type"`
}

// fileRow is one files row read while resolving paths.
type fileRow struct {
	parent   int64
	basename string
	isDir    bool
}
