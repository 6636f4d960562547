package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"music-library/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go heap.
// The rest is left to SQLite's page cache and mmap, which live outside it.
const DefaultMemoryRatio = 0.85

// Limit sources reported in ConfigResult.Source.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// ConfigResult describes how GOMEMLIMIT was configured.
type ConfigResult struct {
	Configured bool
	Source     string
	// ContainerLimit is MEMORY_LIMIT in bytes, 0 when unset.
	ContainerLimit int64
	// GoMemLimit is the effective soft limit in bytes, 0 when unset.
	GoMemLimit int64
	Ratio      float64
}

// ConfigureFromEnv sets the Go soft memory limit from the container limit.
// Call it before the first sync builds a replica.
//
//   - GOMEMLIMIT, when set, wins and is only reported.
//   - MEMORY_LIMIT is the container limit in bytes, typically from the
//     Kubernetes Downward API.
//   - MEMORY_RATIO is the share of MEMORY_LIMIT given to the heap
//     (0 < ratio <= 1, default 0.85).
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		limit := debug.SetMemoryLimit(-1)
		if limit <= 0 || limit == math.MaxInt64 {
			return ConfigResult{Source: SourceGoMemLimit}
		}
		return ConfigResult{Configured: true, Source: SourceGoMemLimit, GoMemLimit: limit}
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: SourceNone}
	}
	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return ConfigResult{Source: SourceNone}
	}

	ratio, err := parseRatio(os.Getenv("MEMORY_RATIO"))
	if err != nil {
		logging.Warn("%v, using default %.2f", err, DefaultMemoryRatio)
	}

	limit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(limit)
	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(limit), ratio*100, formatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

// parseRatio returns the default for an empty or invalid value.
func parseRatio(s string) (float64, error) {
	if s == "" {
		return DefaultMemoryRatio, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DefaultMemoryRatio, fmt.Errorf("invalid MEMORY_RATIO %q", s)
	}
	if r <= 0 || r > 1 {
		return DefaultMemoryRatio, fmt.Errorf("MEMORY_RATIO %q out of range (0.0-1.0)", s)
	}
	return r, nil
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
