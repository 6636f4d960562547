package diff

import (
	"music-library/internal/progress"
	"music-library/internal/tree"
)

// Side is one half of a record: the node as seen on disk or in the store.
type Side struct {
	file *tree.File
}

// Present wraps an existing node.
func Present(f *tree.File) Side {
	return Side{file: f}
}

// Absent is the side of a path that does not exist.
func Absent() Side {
	return Side{}
}

// Get returns the node and whether the side is present.
func (s Side) Get() (*tree.File, bool) {
	return s.file, s.file != nil
}

// IsPresent reports whether the side holds a node.
func (s Side) IsPresent() bool {
	return s.file != nil
}

// Kind classifies a record by which sides are present.
type Kind int

const (
	// Missing: neither on disk nor stored.
	Missing Kind = iota
	// Unchanged: on both sides with the same type.
	Unchanged
	// TypeChanged: on both sides, one a file and the other a directory.
	TypeChanged
	// Removed: stored but gone from disk.
	Removed
	// Added: on disk but not stored yet.
	Added
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case TypeChanged:
		return "type-changed"
	case Removed:
		return "removed"
	case Added:
		return "added"
	default:
		return "missing"
	}
}

// Record pairs the disk and store views of one path.
type Record struct {
	OnDisk  Side
	InStore Side
	Parent  *Record

	// Progress is the unit of work of this record, spawned from the parent's.
	Progress *progress.Tree
}

// Kind classifies the record.
func (r *Record) Kind() Kind {
	disk, onDisk := r.OnDisk.Get()
	stored, inStore := r.InStore.Get()
	switch {
	case onDisk && inStore && disk.IsDir == stored.IsDir:
		return Unchanged
	case onDisk && inStore:
		return TypeChanged
	case inStore:
		return Removed
	case onDisk:
		return Added
	default:
		return Missing
	}
}

// File returns the disk node when present and the stored node otherwise.
func (r *Record) File() *tree.File {
	if f, ok := r.OnDisk.Get(); ok {
		return f
	}
	f, _ := r.InStore.Get()
	return f
}

// Path is the path of the record relative to the library root.
func (r *Record) Path() string {
	if f := r.File(); f != nil {
		return f.RelPath()
	}
	return ""
}
