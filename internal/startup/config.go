package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"music-library/internal/logging"
	"music-library/internal/mediatypes"
)

const (
	defaultSearchLimit = 400
	databaseFile       = "library.db"
)

var errNegativeDuration = errors.New("negative duration")

// Config is the server configuration, read from the environment.
type Config struct {
	LibraryDir       string
	DatabaseDir      string
	Port             string
	MetricsPort      string
	MetricsEnabled   bool
	LogHealthChecks  bool
	SyncInterval     time.Duration
	PollInterval     time.Duration
	WatchEnabled     bool
	WatchDebounce    time.Duration
	AutosaveInterval int
	SearchLimit      int
	SearchTermLimit  int

	// DatabasePath is the SQLite file inside DatabaseDir.
	DatabasePath string
}

func (c *Config) envVars() []envVar {
	return []envVar{
		{"LIBRARY_DIR", stringVar(&c.LibraryDir, "/music")},
		{"DATABASE_DIR", stringVar(&c.DatabaseDir, "/database")},
		{"PORT", stringVar(&c.Port, "8080")},
		{"METRICS_PORT", stringVar(&c.MetricsPort, "9090")},
		{"METRICS_ENABLED", boolVar(&c.MetricsEnabled, true)},
		{"SYNC_INTERVAL", durationVar(&c.SyncInterval, time.Hour)},
		{"POLL_INTERVAL", durationVar(&c.PollInterval, 0)},
		{"WATCH_ENABLED", boolVar(&c.WatchEnabled, true)},
		{"WATCH_DEBOUNCE", durationVar(&c.WatchDebounce, 2*time.Second)},
		{"AUTOSAVE_INTERVAL", intVar(&c.AutosaveInterval, 100)},
		{"SEARCH_LIMIT", intVar(&c.SearchLimit, defaultSearchLimit)},
		{"SEARCH_TERM_LIMIT", intVar(&c.SearchTermLimit, defaultSearchLimit)},
		{"LOG_HEALTH_CHECKS", boolVar(&c.LogHealthChecks, false)},
	}
}

// LoadConfig reads the configuration from the environment, checks it and
// prepares the database directory. A missing library directory is only
// reported; the indexer refuses to sync until it is mounted.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	LogSection("CONFIGURATION")
	config := &Config{}
	for _, v := range config.envVars() {
		logging.Info("  %-20s %v", v.key+":", v.load(v.key))
	}
	logging.Info("  %-20s %s", "LOG_LEVEL:", logging.GetLevel())

	if err := config.validate(); err != nil {
		return nil, err
	}

	logging.Info("")
	LogSection("DIRECTORY SETUP")
	if err := config.prepareDirectories(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("  Features:")
	logging.Info("    Periodic sync:   %s", enabledString(config.SyncInterval > 0))
	logging.Info("    File watching:   %s", enabledString(config.WatchEnabled))
	logging.Info("    Change polling:  %s", enabledString(config.PollInterval > 0))
	logging.Info("    Metrics:         %s", enabledString(config.MetricsEnabled))
	return config, nil
}

// validate rejects unusable ports and repairs limits that would disable
// syncing or searching.
func (c *Config) validate() error {
	if err := checkPort("PORT", c.Port); err != nil {
		return err
	}
	if c.MetricsEnabled {
		if err := checkPort("METRICS_PORT", c.MetricsPort); err != nil {
			return err
		}
		if c.MetricsPort == c.Port {
			return fmt.Errorf("PORT and METRICS_PORT are both %s", c.Port)
		}
	}

	if c.AutosaveInterval < 0 {
		logging.Warn("  Negative AUTOSAVE_INTERVAL, syncing in a single transaction")
		c.AutosaveInterval = 0
	}
	if c.SearchLimit <= 0 {
		logging.Warn("  SEARCH_LIMIT must be positive, using %d", defaultSearchLimit)
		c.SearchLimit = defaultSearchLimit
	}
	if c.SearchTermLimit <= 0 {
		logging.Warn("  SEARCH_TERM_LIMIT must be positive, using %d", defaultSearchLimit)
		c.SearchTermLimit = defaultSearchLimit
	}
	return nil
}

func checkPort(key, port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%s=%q is not a TCP port", key, port)
	}
	return nil
}

// prepareDirectories resolves both directories, reports on the library and
// makes sure the database directory exists and is writable.
func (c *Config) prepareDirectories() error {
	var err error
	if c.LibraryDir, err = filepath.Abs(c.LibraryDir); err != nil {
		return fmt.Errorf("resolve library directory: %w", err)
	}
	if c.DatabaseDir, err = filepath.Abs(c.DatabaseDir); err != nil {
		return fmt.Errorf("resolve database directory: %w", err)
	}
	logging.Info("  Library:   %s", c.LibraryDir)
	logging.Info("  Database:  %s", c.DatabaseDir)

	if err := describeLibrary(c.LibraryDir); err != nil {
		logging.Warn("  Library directory unavailable: %v", err)
		logging.Warn("  Syncs will be refused until it is mounted")
	}

	if err := writableDirectory(c.DatabaseDir); err != nil {
		return fmt.Errorf("database directory %s: %w", c.DatabaseDir, err)
	}
	logging.Info("  [OK] Database directory is writable")
	c.DatabasePath = filepath.Join(c.DatabaseDir, databaseFile)
	return nil
}

// describeLibrary fails unless dir is a directory and, at debug level,
// summarizes its top level by file type.
func describeLibrary(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if !logging.IsDebugEnabled() {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	counts := make(map[mediatypes.FileType]int)
	for _, e := range entries {
		counts[mediatypes.Classify(e.Name(), e.IsDir())]++
	}
	logging.Debug("  Top level: %d folders, %d audio, %d playlists, %d images, %d other",
		counts[mediatypes.FileTypeFolder], counts[mediatypes.FileTypeAudio],
		counts[mediatypes.FileTypePlaylist], counts[mediatypes.FileTypeImage],
		counts[mediatypes.FileTypeOther])
	return nil
}

// writableDirectory creates dir if needed and proves it accepts new files.
func writableDirectory(dir string) error {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return errors.New("exists and is not a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("Failed to remove %s: %v", name, err)
	}
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}
