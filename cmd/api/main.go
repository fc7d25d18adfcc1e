package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/export"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Command-line flags override the environment
	var (
		port   = flag.Int("port", cfg.Port, "HTTP server port")
		dbPath = flag.String("db", cfg.DatabasePath, "SQLite database path")
		bucket = flag.String("bucket", cfg.GCP.Bucket, "GCS bucket for CSV exports")
	)
	flag.Parse()
	cfg.Port = *port
	cfg.DatabasePath = *dbPath
	cfg.GCP.Bucket = *bucket

	log, err := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to create logger")
	}

	ctx := context.Background()

	store, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	defer store.Close()

	svc := ledger.NewService(store, log)

	// Initialize export infrastructure
	exporter, closeExporter := export.FromConfig(ctx, cfg, svc, log)
	defer closeExporter()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Export.QueueSize, jobStore, inmemory.WithWorkers(cfg.Export.Workers), inmemory.WithLogger(log))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Export.Workers).Msg("Starting export workers")
	if err := jobQueue.Start(workerCtx, exporter.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start export workers")
	}

	handler := api.NewRouter(api.Deps{
		Ledger:    svc,
		Publisher: jobQueue,
		Jobs:      jobStore,
		Log:       log,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", strconv.Itoa(cfg.Port)).Str("database", store.Path()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
