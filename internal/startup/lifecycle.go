package startup

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"music-library/internal/logging"
)

const rule = "------------------------------------------------------------"

// LogSection logs a section header.
func LogSection(title string) {
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

// LogDatabaseInit logs how long opening and migrating the database took.
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	LogSection("DATABASE")
	logging.Info("  [OK] Schema ready in %v", duration.Round(time.Millisecond))
}

// LogIndexerInit describes how the indexer will keep the library in sync.
func LogIndexerInit(config *Config) {
	logging.Info("")
	LogSection("INDEXER")
	logging.Info("  Full sync:     %s", every(config.SyncInterval))
	logging.Info("  Polling:       %s", every(config.PollInterval))
	if config.WatchEnabled {
		logging.Info("  Notifications: on, %v quiet period", config.WatchDebounce)
	} else {
		logging.Info("  Notifications: off")
	}
	if config.AutosaveInterval == 0 {
		logging.Info("  Commits:       one transaction per sync")
	} else {
		logging.Info("  Commits:       every %d inserts", config.AutosaveInterval)
	}
}

func every(d time.Duration) string {
	if d <= 0 {
		return "off"
	}
	return "every " + d.String()
}

// LogIndexerStarted logs that the initial sync was scheduled.
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer running, initial sync scheduled")
}

// ServerConfig is what LogServerStarted reports.
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints once startup is done.
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	LogSection(fmt.Sprintf("READY in %v", config.StartupDuration.Round(time.Millisecond)))
	logging.Info("  API:      http://localhost:%s/api", config.Port)
	logging.Info("  Health:   http://localhost:%s/healthz", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:  http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info(rule)
}

// LogShutdownInitiated logs the start of a graceful shutdown and its cause.
func LogShutdownInitiated(reason string) {
	logging.Info("")
	LogSection("SHUTTING DOWN (" + reason + ")")
}

// LogShutdownStep logs a shutdown step before it runs.
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a finished shutdown step.
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs the end of shutdown.
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	fmt.Println(strings.Join([]string{
		rule,
		`   __  ___         _       __   _ __`,
		`  /  |/  /_ _____ (_)___  / /  (_) /  _______ _______ __`,
		` / /|_/ / // (_-</ / __/ / /__/ / _ \/ __/ _ '/ __/ // /`,
		`/_/  /_/\_,_/___/_/\__/ /____/_/_.__/_/  \_,_/_/  \_, /`,
		`                                                 /___/`,
		rule,
	}, "\n"))
	logging.Info("  %s (commit %s, built %s)", Version, Commit, BuildTime)
	logging.Info("")
}

func logSystemInfo() {
	LogSection("SYSTEM")
	logging.Info("  %s on %s/%s, %d CPUs, GOMAXPROCS %d",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if limit := os.Getenv("GOMEMLIMIT"); limit != "" {
		logging.Info("  GOMEMLIMIT %s", limit)
	}
	if host, err := os.Hostname(); err == nil {
		logging.Debug("  Host %s, pid %d", host, os.Getpid())
	}
	logging.Info("")
}
