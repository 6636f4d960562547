package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"music-library/internal/logging"
	"music-library/internal/metrics"
)

// Config holds the heap pressure thresholds.
type Config struct {
	// LimitBytes is the heap budget; 0 uses GOMEMLIMIT.
	LimitBytes int64
	// Usage ratio below which a paused monitor resumes.
	HighWaterMark float64
	// Usage ratio at which the monitor pauses.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig returns the thresholds used by the server.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and holds syncs back between batches while it
// is critical. Without a limit it never pauses.
type Monitor struct {
	config Config
	limit  int64

	mu       sync.Mutex
	alloc    uint64
	paused   bool
	resumed  chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor. It does not sample until Start.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	} else {
		logging.Info("Memory monitor using a limit of %s", formatBytes(limit))
	}
	return &Monitor{
		config:   config,
		limit:    limit,
		resumed:  make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

// Start begins sampling.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				var stats runtime.MemStats
				runtime.ReadMemStats(&stats)
				m.observe(stats.Alloc)
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Stop ends sampling and releases all waiters.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// observe records a heap sample and moves between the paused and running
// states. Pausing starts a collection.
func (m *Monitor) observe(alloc uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alloc = alloc
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case !m.paused && usage >= m.config.CriticalWaterMark:
		logging.Warn("Memory critical (%.1f%% of limit), pausing syncs between batches", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case m.paused && usage < m.config.HighWaterMark:
		logging.Info("Memory recovered (%.1f%% of limit), resuming syncs", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumed)
		m.resumed = make(chan struct{})
	}
}

// Wait blocks while memory is critical. It returns ctx's error if ctx ends
// first and nil once usage recovered or the monitor stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resumed := m.resumed
	m.mu.Unlock()

	logging.Debug("Sync waiting for memory to recover")
	select {
	case <-resumed:
		return nil
	case <-m.stopChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether memory is critical.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns the last sampled heap usage as a share of the limit, or 0
// without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.alloc) / float64(m.limit)
}
