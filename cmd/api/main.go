package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sie-import/internal/api"
	"github.com/dvloznov/sie-import/internal/api/handlers"
	"github.com/dvloznov/sie-import/internal/api/middleware"
	"github.com/dvloznov/sie-import/internal/config"
	"github.com/dvloznov/sie-import/internal/gcsuploader"
	"github.com/dvloznov/sie-import/internal/jobs/inmemory"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/dvloznov/sie-import/internal/pipeline"
	"github.com/dvloznov/sie-import/internal/stores"
	"github.com/patrickmn/go-cache"
)

func main() {
	configFile := flag.String("config", "", "Path to a config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	ctx := logger.WithContext(context.Background(), log)

	backend, err := stores.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open period store")
	}
	defer backend.Close()

	// GCS is optional: without it uploads stay in memory and async imports are disabled.
	var storage *gcsuploader.GCSStorageService
	if cfg.GCS.Bucket != "" {
		storage, err = gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer storage.Close()
	} else {
		log.Warn().Msg("No GCS bucket configured - uploads are kept in memory only and /api/imports is disabled")
	}

	deps := pipeline.Deps{Runs: backend.Runs, Store: backend.Periods}
	docsCfg := handlers.DocumentsConfig{
		MaxUploadBytes:    cfg.API.MaxUploadBytes,
		DefaultFiscalYear: cfg.Import.FiscalYear,
	}
	if storage != nil {
		deps.Storage = storage
		docsCfg.Uploader = storage
		docsCfg.Bucket = cfg.GCS.Bucket
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, cfg.Jobs.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, pipeline.NewImportJobHandler(deps)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Job workers started")

	routes := api.RouterConfig{
		Documents: handlers.NewDocumentsHandler(cache.New(cfg.API.CacheTTL, 2*cfg.API.CacheTTL), deps, docsCfg, log),
		Jobs:      handlers.NewJobsHandler(jobStore, log),
		Periods:   handlers.NewPeriodsHandler(backend.Periods, log),
		Log:       log,
	}
	if storage != nil {
		routes.Imports = handlers.NewImportsHandler(jobQueue, cfg.Import.FiscalYear, log)
	}
	if cfg.API.RateLimit > 0 {
		routes.RateLimiter = middleware.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst)
	}

	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      api.NewRouter(routes),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.API.Port).
			Str("store", backend.Name).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight imports
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
