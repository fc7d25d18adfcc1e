package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/export"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// The worker periodically exports the ledgers of a fixed set of users,
// typically to keep the BigQuery mirror fresh without going through the API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		dbPath   = flag.String("db", cfg.DatabasePath, "SQLite database path")
		users    = flag.String("users", "", "Comma-separated user IDs to export")
		target   = flag.String("target", string(jobs.ExportTargetBigQuery), "Export target: gcs or bigquery")
		interval = flag.Duration("interval", time.Hour, "Time between export rounds")
	)
	flag.Parse()

	log, err := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to create logger")
	}

	userIDs, err := parseUsers(*users)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -users")
	}
	exportTarget, err := jobs.ParseExportTarget(*target)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -target")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	exporter, closeExporter := export.FromConfig(ctx, cfg, ledger.NewService(store, log), log)
	defer closeExporter()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Export.QueueSize, jobStore, inmemory.WithWorkers(cfg.Export.Workers), inmemory.WithLogger(log))

	log.Info().
		Int("users", len(userIDs)).
		Str("target", string(exportTarget)).
		Dur("interval", *interval).
		Msg("Starting export worker")

	if err := jobQueue.Start(ctx, exporter.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	go schedule(ctx, jobQueue, userIDs, exportTarget, *interval, log)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down export worker...")

	// Stop the queue and wait for in-flight jobs
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	log.Info().Msg("Export worker exited")
}

// schedule enqueues a round immediately and then once per interval until ctx ends.
func schedule(ctx context.Context, pub jobs.Publisher, users []string, target jobs.ExportTarget, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := enqueueRound(ctx, pub, users, target); err != nil {
			log.Error().Err(err).Int("enqueued", n).Msg("Export round incomplete")
		} else {
			log.Info().Int("enqueued", n).Msg("Export round enqueued")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// enqueueRound publishes one export job per user and returns how many were accepted.
func enqueueRound(ctx context.Context, pub jobs.Publisher, users []string, target jobs.ExportTarget) (int, error) {
	for i, u := range users {
		if err := pub.PublishExport(ctx, &jobs.ExportJob{UserID: u, Target: target}); err != nil {
			return i, fmt.Errorf("enqueueing export for %s: %w", u, err)
		}
	}
	return len(users), nil
}

// parseUsers validates a comma-separated list of user IDs.
func parseUsers(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil || id == uuid.Nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		out = append(out, id.String())
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one user id is required")
	}
	return out, nil
}
