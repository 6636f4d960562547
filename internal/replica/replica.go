package replica

import (
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"music-library/internal/tree"
)

// Node is one files row.
type Node struct {
	ID       int64  `json:"id"`
	Parent   int64  `json:"parent"`
	Filename string `json:"filename"`
	Filetype string `json:"filetype"`
	IsDir    bool   `json:"isDirectory"`
}

// Basename is filename plus extension.
func (n Node) Basename() string {
	return n.Filename + n.Filetype
}

// Snapshot is an immutable copy of the files table. Nodes are kept in an
// arena indexed by identifier; paths are rebuilt by following parent ids.
type Snapshot struct {
	nodes    map[int64]Node
	children map[int64][]int64
	ids      *roaring64.Bitmap
	dirs     *roaring64.Bitmap
	builtAt  time.Time
}

// Builder accumulates rows for a new Snapshot.
type Builder struct {
	s *Snapshot
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{s: &Snapshot{
		nodes:    make(map[int64]Node),
		children: make(map[int64][]int64),
		ids:      roaring64.New(),
		dirs:     roaring64.New(),
	}}
}

// Add records one row.
func (b *Builder) Add(n Node) {
	b.s.nodes[n.ID] = n
	b.s.children[n.Parent] = append(b.s.children[n.Parent], n.ID)
	b.s.ids.Add(uint64(n.ID))
	if n.IsDir {
		b.s.dirs.Add(uint64(n.ID))
	}
}

// Build finishes the snapshot. The builder must not be used afterwards.
func (b *Builder) Build() *Snapshot {
	s := b.s
	for parent, kids := range s.children {
		sort.Slice(kids, func(i, j int) bool {
			return s.nodes[kids[i]].Basename() < s.nodes[kids[j]].Basename()
		})
		s.children[parent] = kids
	}
	s.ids.RunOptimize()
	s.dirs.RunOptimize()
	s.builtAt = time.Now()
	b.s = nil
	return s
}

// Empty returns a snapshot without rows.
func Empty() *Snapshot {
	return NewBuilder().Build()
}

// Get returns the node with the given identifier.
func (s *Snapshot) Get(id int64) (Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Contains reports whether id is a row of the snapshot.
func (s *Snapshot) Contains(id int64) bool {
	return id > 0 && s.ids.Contains(uint64(id))
}

// IsDir reports whether id is a directory row.
func (s *Snapshot) IsDir(id int64) bool {
	return id > 0 && s.dirs.Contains(uint64(id))
}

// Path rebuilds the relative path of id. It fails for unknown ids and for
// parent chains that do not end at the root.
func (s *Snapshot) Path(id int64) (string, bool) {
	var parts []string
	for cur, steps := id, 0; cur != tree.RootID; steps++ {
		n, ok := s.nodes[cur]
		if !ok || steps > len(s.nodes) {
			return "", false
		}
		parts = append(parts, n.Basename())
		cur = n.Parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return filepath.Join(parts...), true
}

// Children lists the rows below parent ordered by basename. Use tree.RootID
// for the top level.
func (s *Snapshot) Children(parent int64) []Node {
	ids := s.children[parent]
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.nodes[id])
	}
	return out
}

// Lookup resolves a relative path. The empty path is the root.
func (s *Snapshot) Lookup(relpath string) (Node, bool) {
	current := Node{ID: tree.RootID, Parent: tree.RootID, IsDir: true}
	cleaned := filepath.Clean("/" + relpath)
	if cleaned == "/" {
		return current, true
	}

	for _, part := range strings.Split(strings.TrimPrefix(cleaned, "/"), "/") {
		found := false
		for _, id := range s.children[current.ID] {
			if n := s.nodes[id]; n.Basename() == part {
				current, found = n, true
				break
			}
		}
		if !found {
			return Node{}, false
		}
	}
	return current, true
}

// Files is the number of non-directory rows.
func (s *Snapshot) Files() int {
	return int(s.ids.GetCardinality() - s.dirs.GetCardinality())
}

// Dirs is the number of directory rows.
func (s *Snapshot) Dirs() int {
	return int(s.dirs.GetCardinality())
}

// DirPaths returns the relative paths of all directories in id order.
func (s *Snapshot) DirPaths() []string {
	out := make([]string, 0, s.dirs.GetCardinality())
	it := s.dirs.Iterator()
	for it.HasNext() {
		if p, ok := s.Path(int64(it.Next())); ok {
			out = append(out, p)
		}
	}
	return out
}

// BuiltAt is the time the snapshot was completed.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Holder publishes the current snapshot. Readers always see a complete
// snapshot; a rebuilt one replaces the old one in a single swap.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns a holder with an empty snapshot.
func NewHolder() *Holder {
	h := &Holder{}
	h.current.Store(Empty())
	return h
}

// Current returns the latest snapshot.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap publishes s and returns the snapshot it replaced.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}
