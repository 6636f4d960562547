package tree

import (
	"path/filepath"
	"strings"
)

// RootID is the parent identifier of top-level rows and the identifier of
// the synthetic library root, which has no row of its own.
const RootID int64 = -1

// NoID marks a node the store has not assigned an identifier to yet.
const NoID int64 = 0

// File is a node of the library tree. It only knows its parent; paths are
// computed on demand by walking the parent chain.
type File struct {
	Parent   *File
	Basename string
	IsDir    bool
	ID       int64
}

// NewRoot returns the synthetic root of the library.
func NewRoot() *File {
	return &File{IsDir: true, ID: RootID}
}

// New creates a node below parent. Only the last element of path is kept as
// basename; trailing separators are ignored.
func New(parent *File, path string, isDir bool) *File {
	trimmed := strings.TrimRight(path, string(filepath.Separator)+"/")
	if trimmed == "" {
		trimmed = path
	}
	return &File{
		Parent:   parent,
		Basename: filepath.Base(trimmed),
		IsDir:    isDir,
	}
}

// FromRow rebuilds a node from the columns of a files row.
func FromRow(parent *File, id int64, filename, filetype string, isDir bool) *File {
	return &File{
		Parent:   parent,
		Basename: filename + filetype,
		IsDir:    isDir,
		ID:       id,
	}
}

// IsRoot reports whether f is the synthetic library root.
func (f *File) IsRoot() bool {
	return f.Parent == nil && f.Basename == ""
}

// Persisted reports whether the store has assigned f an identifier.
func (f *File) Persisted() bool {
	return f.ID != NoID
}

// RelPath joins the basenames from the root down to f.
func (f *File) RelPath() string {
	var parts []string
	for n := f; n != nil; n = n.Parent {
		if n.Basename != "" {
			parts = append(parts, n.Basename)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return filepath.Join(parts...)
}

// FullPath is RelPath below the library base directory.
func (f *File) FullPath(base string) string {
	return filepath.Join(base, f.RelPath())
}

// Depth is the number of path elements between the root and f.
func (f *File) Depth() int {
	depth := 0
	for n := f; n != nil; n = n.Parent {
		if n.Basename != "" {
			depth++
		}
	}
	return depth
}

// Name is the basename without extension.
func (f *File) Name() string {
	name, _ := SplitName(f.Basename, f.IsDir)
	return name
}

// Ext is the extension including its leading dot; empty for directories.
func (f *File) Ext() string {
	_, ext := SplitName(f.Basename, f.IsDir)
	return ext
}

// SplitName splits a basename at its last dot. Leading dots belong to the
// name, so ".hidden" has no extension. Directories are never split.
func SplitName(basename string, isDir bool) (name, ext string) {
	if isDir {
		return basename, ""
	}
	stem := strings.TrimLeft(basename, ".")
	i := strings.LastIndexByte(stem, '.')
	if i < 0 {
		return basename, ""
	}
	cut := len(basename) - len(stem) + i
	return basename[:cut], basename[cut:]
}

func (f *File) String() string {
	if f.IsRoot() {
		return "/"
	}
	if f.IsDir {
		return f.RelPath() + string(filepath.Separator)
	}
	return f.RelPath()
}
