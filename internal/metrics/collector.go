package metrics

import (
	"sync"
	"time"

	"music-library/internal/logging"
)

// StatsProvider supplies the library counts published as gauges.
type StatsProvider interface {
	LibraryStats() Stats
}

// Stats are the library counts at UpdatedAt. A zero UpdatedAt means they
// were never calculated.
type Stats struct {
	Files       int
	Directories int
	Words       int
	Postings    int
	UpdatedAt   time.Time
}

// Collector copies library counts into the library gauges at a fixed
// interval. Counts are recalculated by syncs, not by the collector.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
}

// NewCollector returns a collector polling provider every interval.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start publishes the counts once and then every interval until Stop.
func (c *Collector) Start() {
	c.done.Add(1)
	go func() {
		defer c.done.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			c.collect()
			select {
			case <-ticker.C:
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop ends collection and waits for the loop to exit. It is safe to call
// more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.done.Wait()
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}
	s := c.provider.LibraryStats()
	if s.UpdatedAt.IsZero() {
		logging.Debug("Library counts not calculated yet")
		return
	}

	LibraryFiles.Set(float64(s.Files))
	LibraryDirectories.Set(float64(s.Directories))
	LibraryWords.Set(float64(s.Words))
	LibraryPostings.Set(float64(s.Postings))
	LibraryStatsAge.Set(time.Since(s.UpdatedAt).Seconds())
}
