package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-encoder/internal/catalog"
	"media-encoder/internal/config"
	"media-encoder/internal/handlers"
	"media-encoder/internal/logging"
	"media-encoder/internal/middleware"
	"media-encoder/internal/startup"
	"media-encoder/internal/transcode"
)

const defaultConfigPath = "/config/config.json"

func main() {
	startTime := time.Now()

	configPath := os.Getenv("ENCODER_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	startup.LogStartup(cfg)

	if err := startup.ValidateDirectories(cfg); err != nil {
		startup.LogFatal("Directory validation failed: %v", err)
	}
	if err := startup.CheckEncoders(cfg); err != nil {
		startup.LogFatal("Encoder check failed: %v", err)
	}

	// Path mappings are validated up front: a table that rewrites its own
	// output would produce wrong source paths on every job.
	mapper := transcode.NewMappingTable(cfg.PathMappings)
	if err := mapper.Validate(); err != nil {
		startup.LogFatal("Invalid path mappings: %v", err)
	}

	// Initialize catalog database
	dbStart := time.Now()
	store, err := catalog.NewStore(context.Background(), cfg.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize catalog database: %v", err)
	}
	defer store.Close()
	logging.Info("Catalog database ready in %v", time.Since(dbStart).Round(time.Millisecond))

	// Catalog sources and scanner
	var sources []catalog.Source
	if cfg.HasJellyfin() {
		sources = append(sources, catalog.NewJellyfinClient(cfg.JellyfinURL, cfg.JellyfinAPIKey))
	}
	if cfg.HasPlex() {
		sources = append(sources, catalog.NewPlexClient(cfg.PlexURL, cfg.PlexToken))
	}
	scanner := catalog.NewScanner(store,
		time.Duration(cfg.ScanIntervalMin)*time.Minute, sources...)

	// Start scanner in background (non-blocking); the first scan can take
	// a while against a large Plex library.
	go scanner.Start(context.Background())

	// Transcode engine
	caps := transcode.ProbeCapabilities(cfg.FFmpegPath)
	resolver := transcode.NewResolver(cfg.Presets, cfg.HWAccel, cfg.HWDevice, caps)
	registry := transcode.NewRegistry()
	completed := transcode.NewCompletedStore(cfg.TranscodePath)

	scheduler := transcode.NewScheduler(transcode.Options{
		Registry:      registry,
		Resolver:      resolver,
		Mapper:        mapper,
		Store:         completed,
		FFmpegPath:    cfg.FFmpegPath,
		OutputRoot:    cfg.TranscodePath,
		MaxConcurrent: cfg.MaxConcurrentJobs,
	})
	scheduler.Start()

	posters := catalog.NewPosterCache(cfg.PosterCacheDir, store)

	// Initialize handlers
	h := handlers.New(store, posters, scanner, registry, scheduler, resolver, completed, cfg.Presets)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router)

	// Apply logging middleware
	loggedHandler := middleware.Logger(middleware.DefaultLoggingConfig())(router)

	// Apply metrics middleware
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Create server. WriteTimeout stays 0 so large artifact downloads are
	// never cut off mid-stream; the streaming writer enforces its own
	// per-chunk timeouts.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, scanner, scheduler)

	// Start server
	startup.LogServerStarted(cfg.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	// Catalog
	api.HandleFunc("/media", h.ListMedia).Methods("GET")
	api.HandleFunc("/media/{id}", h.GetMedia).Methods("GET")
	api.HandleFunc("/shows", h.ListShows).Methods("GET")
	api.HandleFunc("/shows/{id}", h.GetShow).Methods("GET")
	api.HandleFunc("/posters/{id}", h.GetPoster).Methods("GET")
	api.HandleFunc("/scan", h.TriggerScan).Methods("POST")

	// Transcode jobs
	api.HandleFunc("/presets", h.ListPresets).Methods("GET")
	api.HandleFunc("/transcode", h.SubmitTranscode).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}", h.RemoveJob).Methods("DELETE")

	// Completed artifacts
	api.HandleFunc("/completed", h.ListCompleted).Methods("GET")
	api.HandleFunc("/completed/{filename}", h.DeleteCompleted).Methods("DELETE")
	api.HandleFunc("/completed/{filename}/download", h.DownloadCompleted).Methods("GET")

	// System
	api.HandleFunc("/system", h.GetSystem).Methods("GET")

	return r
}

func handleShutdown(srv *http.Server, scanner *catalog.Scanner, scheduler *transcode.Scheduler) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scanner.Stop()
	startup.LogShutdownStepComplete("Catalog scanner stopped")

	scheduler.Stop()
	startup.LogShutdownStepComplete("Scheduler stopped, workers reaped")

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
