package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"music-library/internal/database"
	"music-library/internal/filesystem"
	"music-library/internal/handlers"
	"music-library/internal/indexer"
	"music-library/internal/logging"
	"music-library/internal/memory"
	"music-library/internal/metrics"
	"music-library/internal/middleware"
	"music-library/internal/startup"
)

func main() {
	startTime := time.Now()

	// Configure GOMEMLIMIT before the first replica is built
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"library":  config.LibraryDir,
		"database": config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath, &database.Options{
		SearchTermLimit: config.SearchTermLimit,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	// Initialize indexer
	startup.LogIndexerInit(config)
	opts := indexerOptions(config)
	opts.Backpressure = memMonitor
	idx := indexer.New(db, config.LibraryDir, opts)
	if err := idx.Start(); err != nil {
		startup.LogFatal("Failed to start indexer: %v", err)
	}
	startup.LogIndexerStarted()

	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()

	h := handlers.New(db, idx, config)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	servers := []*http.Server{{
		Addr:         ":" + config.Port,
		Handler:      wrapHandler(router, config),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
	if config.MetricsEnabled {
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", h.MetricsHandler()).Methods("GET")
		metricsRouter.HandleFunc("/health", h.LivenessCheck).Methods("GET", "HEAD")
		servers = append(servers, &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsRouter,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	g, gctx := errgroup.WithContext(context.Background())
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			startup.LogShutdownInitiated(sig.String())
		case <-gctx.Done():
			startup.LogShutdownInitiated("server error")
		}
		shutdown(servers, idx, collector, memMonitor)
		return nil
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := g.Wait(); err != nil {
		startup.LogFatal("Server error: %v", err)
	}
}

// indexerOptions maps the configuration onto indexer options.
func indexerOptions(config *startup.Config) indexer.Options {
	opts := indexer.DefaultOptions()
	opts.AutosaveInterval = config.AutosaveInterval
	opts.Interval = config.SyncInterval
	opts.Watch = config.WatchEnabled
	opts.Debounce = config.WatchDebounce
	opts.PollInterval = config.PollInterval
	opts.OnSyncComplete = func(kind string, result indexer.Result) {
		if result.Added > 0 || result.Removed > 0 {
			logging.Debug("Library changed by %s sync: %d added, %d removed", kind, result.Added, result.Removed)
		}
	}
	return opts
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/random", h.Random).Methods("GET")
	api.HandleFunc("/browse", h.Browse).Methods("GET")
	api.HandleFunc("/browse/{path:.*}", h.Browse).Methods("GET")
	api.HandleFunc("/sync", h.TriggerSync).Methods("POST")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return r
}

// wrapHandler applies the request metrics and access log middleware.
func wrapHandler(router *mux.Router, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	return middleware.Logger(loggingConfig)(router)
}

func shutdown(servers []*http.Server, idx *indexer.Indexer, collector *metrics.Collector, memMonitor *memory.Monitor) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP servers")
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		}
	}
	startup.LogShutdownStepComplete("HTTP servers stopped")

	startup.LogShutdownStep("Stopping indexer")
	idx.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownComplete()
}
