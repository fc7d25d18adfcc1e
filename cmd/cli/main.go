package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/export"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/seed"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log, err := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: os.Stderr})
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to create logger")
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		runSeed(cfg, log)
	case "balance":
		runBalance(cfg, log)
	case "monthly":
		runMonthly(cfg, log)
	case "transactions":
		runTransactions(cfg, log)
	case "export":
		runExport(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  seed          Create accounts and categories from a YAML file (local or gs://)")
	fmt.Println("  balance       Show the balance or debt of an account")
	fmt.Println("  monthly       Show the income/expense summary of a month")
	fmt.Println("  transactions  List transactions with filters")
	fmt.Println("  export        Export the ledger to GCS (CSV) or BigQuery")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// commonFlags registers the flags every command shares.
func commonFlags(fs *flag.FlagSet, cfg *config.Config) (dbPath, user *string) {
	dbPath = fs.String("db", cfg.DatabasePath, "SQLite database path")
	user = fs.String("user", "", "User ID (UUID) that owns the data")
	return dbPath, user
}

// openLedger opens the database and parses the user id, exiting on failure.
func openLedger(ctx context.Context, log zerolog.Logger, dbPath, user string) (*ledger.Service, *sqlite.Store, uuid.UUID) {
	userID, err := uuid.Parse(user)
	if err != nil || userID == uuid.Nil {
		log.Fatal().Str("user", user).Msg("Error: -user must be a non-nil UUID")
	}

	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
	}
	return ledger.NewService(store, log), store, userID
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
}

func runSeed(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dbPath, user := commonFlags(fs, cfg)
	file := fs.String("file", "", "Seed YAML file path or gs:// URI")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Usage: cli seed -user UUID -file PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, store, userID := openLedger(ctx, log, *dbPath, *user)
	defer store.Close()

	fixture, err := seed.Load(ctx, *file, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load seed file")
	}

	res, err := seed.Apply(ctx, svc, userID, fixture, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}

	fmt.Printf("Accounts: %d created, %d skipped\n", res.AccountsCreated, res.AccountsSkipped)
	fmt.Printf("Categories: %d created, %d skipped\n", res.CategoriesCreated, res.CategoriesSkipped)
}

func runBalance(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	dbPath, user := commonFlags(fs, cfg)
	account := fs.String("account", "", "Account ID (omit to show every account)")
	fs.Parse(os.Args[2:])

	ctx := context.Background()
	svc, store, userID := openLedger(ctx, log, *dbPath, *user)
	defer store.Close()

	var ids []uuid.UUID
	if *account != "" {
		id, err := uuid.Parse(*account)
		if err != nil {
			log.Fatal().Err(err).Msg("Error: -account must be a UUID")
		}
		ids = append(ids, id)
	} else {
		accounts, err := svc.ListAccounts(ctx, userID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list accounts")
		}
		for _, a := range accounts {
			ids = append(ids, a.ID)
		}
	}

	positions := make([]ledger.Position, 0, len(ids))
	for _, id := range ids {
		pos, err := svc.AccountBalance(ctx, userID, id)
		if err != nil {
			log.Fatal().Err(err).Str("account_id", id.String()).Msg("Failed to compute balance")
		}
		positions = append(positions, pos)
	}
	printJSON(positions)
}

func runMonthly(cfg *config.Config, log zerolog.Logger) {
	now := time.Now()
	fs := flag.NewFlagSet("monthly", flag.ExitOnError)
	dbPath, user := commonFlags(fs, cfg)
	year := fs.Int("year", now.Year(), "Year")
	month := fs.Int("month", int(now.Month()), "Month (1-12)")
	fs.Parse(os.Args[2:])

	ctx := context.Background()
	svc, store, userID := openLedger(ctx, log, *dbPath, *user)
	defer store.Close()

	summary, err := svc.MonthlySummary(ctx, userID, *year, *month)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build monthly summary")
	}
	printJSON(summary)
}

func runTransactions(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	dbPath, user := commonFlags(fs, cfg)
	from := fs.String("from", "", "Earliest transaction date (YYYY-MM-DD)")
	to := fs.String("to", "", "Latest transaction date (YYYY-MM-DD)")
	account := fs.String("account", "", "Account ID")
	category := fs.String("category", "", "Category ID")
	method := fs.String("payment-method", "", "Payment method")
	text := fs.String("q", "", "Text to search in description or counterparty")
	limit := fs.Int("limit", 50, "Maximum rows (0 for all)")
	offset := fs.Int("offset", 0, "Rows to skip")
	fs.Parse(os.Args[2:])

	f := ledger.TransactionFilter{
		PaymentMethod: domain.PaymentMethod(*method),
		Text:          *text,
		Limit:         *limit,
		Offset:        *offset,
	}
	var err error
	if f.From, err = parseDateFlag("from", *from); err != nil {
		log.Fatal().Err(err).Msg("Invalid flag")
	}
	if f.To, err = parseDateFlag("to", *to); err != nil {
		log.Fatal().Err(err).Msg("Invalid flag")
	}
	if f.AccountID, err = parseIDFlag("account", *account); err != nil {
		log.Fatal().Err(err).Msg("Invalid flag")
	}
	if f.CategoryID, err = parseIDFlag("category", *category); err != nil {
		log.Fatal().Err(err).Msg("Invalid flag")
	}

	ctx := context.Background()
	svc, store, userID := openLedger(ctx, log, *dbPath, *user)
	defer store.Close()

	txs, err := svc.ListTransactions(ctx, userID, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	fmt.Printf("%-10s  %-14s  %12s  %-13s  %s\n", "DATE", "TYPE", "AMOUNT", "METHOD", "DESCRIPTION")
	for _, t := range txs {
		desc := t.Description
		if t.Counterparty != "" {
			desc += " (" + t.Counterparty + ")"
		}
		fmt.Printf("%-10s  %-14s  %12s  %-13s  %s\n",
			t.TransactionDate, t.Type, t.Amount.StringFixed(2), t.PaymentMethod, desc)
	}
	fmt.Printf("\n%d transaction(s)\n", len(txs))
}

func runExport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath, user := commonFlags(fs, cfg)
	target := fs.String("target", "gcs", "Export target: gcs or bigquery")
	bucket := fs.String("bucket", cfg.GCP.Bucket, "GCS bucket for CSV exports")
	out := fs.String("out", "", "Write the CSV to this local file instead of uploading")
	fs.Parse(os.Args[2:])
	cfg.GCP.Bucket = *bucket

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, store, userID := openLedger(ctx, log, *dbPath, *user)
	defer store.Close()

	if *out != "" {
		file, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer file.Close()

		n, err := export.NewExporter(svc, log).ExportCSV(ctx, userID, file)
		if err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
		fmt.Printf("Wrote %d transaction(s) to %s\n", n, *out)
		return
	}

	t, err := jobs.ParseExportTarget(*target)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid target")
	}

	exporter, closeExporter := export.FromConfig(ctx, cfg, svc, log)
	defer closeExporter()

	job := &jobs.ExportJob{JobID: uuid.NewString(), UserID: userID.String(), Target: t}
	if err := exporter.HandleJob(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	fmt.Println(job.Result)
}

func parseDateFlag(name, s string) (*civil.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", name, err)
	}
	return &d, nil
}

func parseIDFlag(name, s string) (uuid.NullUUID, error) {
	if s == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.NullUUID{}, fmt.Errorf("-%s: %w", name, err)
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}
