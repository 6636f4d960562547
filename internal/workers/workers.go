package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// OverrideEnv pins the worker count of every pool, still capped by each
// pool's limit.
const OverrideEnv = "FS_WORKERS"

// ioPerCPU is the pool size per CPU for tasks that mostly wait on the
// filesystem.
const ioPerCPU = 2.0

// Count returns perCPU workers for every CPU GOMAXPROCS allows, at least one
// and at most limit. A limit of 0 means no cap.
func Count(perCPU float64, limit int) int {
	n := max(int(float64(runtime.GOMAXPROCS(0))*perCPU), 1)
	if pinned, err := strconv.Atoi(os.Getenv(OverrideEnv)); err == nil && pinned > 0 {
		n = pinned
	}
	if limit > 0 {
		n = min(n, limit)
	}
	return n
}

// ForIO returns the pool size for filesystem-bound tasks.
func ForIO(limit int) int {
	return Count(ioPerCPU, limit)
}

// IOGroup returns an errgroup running at most ForIO(limit) functions at
// once. The context is canceled when a function fails or ctx ends.
func IOGroup(ctx context.Context, limit int) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ForIO(limit))
	return g, gctx
}
