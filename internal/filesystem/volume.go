package filesystem

import (
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
)

// unknownVolume labels paths outside every configured volume.
const unknownVolume = "unknown"

// VolumeResolver names the mount a path lives on, for metric labels. The
// most specific volume wins when volumes nest.
type VolumeResolver struct {
	roots []volumeRoot
}

type volumeRoot struct {
	dir  string
	name string
}

// NewVolumeResolver builds a resolver from volume names to directories.
//
//	NewVolumeResolver(map[string]string{"library": "/music", "database": "/database"})
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{}
	for name, dir := range volumes {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		vr.roots = append(vr.roots, volumeRoot{dir: filepath.Clean(dir), name: name})
	}
	sort.Slice(vr.roots, func(i, j int) bool {
		return len(vr.roots[i].dir) > len(vr.roots[j].dir)
	})
	return vr
}

// Resolve returns the volume holding path, or "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return unknownVolume
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return unknownVolume
	}
	for _, r := range vr.roots {
		if within(r.dir, abs) {
			return r.name
		}
	}
	return unknownVolume
}

// within reports whether path is dir or below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

var defaultResolver atomic.Pointer[VolumeResolver]

// SetDefaultVolumeResolver sets the resolver used when a RetryConfig has
// none. Call it once the configuration is loaded.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver.Store(vr)
}
