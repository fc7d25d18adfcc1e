package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		dbPath = flag.String("db", cfg.DatabasePath, "SQLite database path")
		status = flag.Bool("status", false, "Only report migration status")
	)
	flag.Parse()

	log := logger.New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sqlite.OpenDB(ctx, *dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	log.Info().Str("path", *dbPath).Msg("Connected to database")

	if !*status {
		applied, err := sqlite.Migrate(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		if len(applied) == 0 {
			log.Info().Msg("No new migrations to apply. Database is up to date.")
		} else {
			log.Info().Int("count", len(applied)).Msg("Applied migrations")
		}
	}

	statuses, err := sqlite.Status(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migration status")
	}
	printStatus(os.Stdout, statuses)
}

// printStatus writes one line per known migration.
func printStatus(w io.Writer, statuses []sqlite.MigrationStatus) {
	for _, st := range statuses {
		if st.Applied == nil {
			fmt.Fprintf(w, "  [PENDING] %04d_%s\n", st.Version, st.Name)
			continue
		}
		fmt.Fprintf(w, "  [OK]      %04d_%s  applied %s\n",
			st.Version, st.Name, st.Applied.AppliedAt.Format(time.RFC3339))
	}
}
