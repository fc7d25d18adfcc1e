package export

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-ledger/internal/infra/bigquery"
	"github.com/rs/zerolog"
)

// FromConfig wires whichever export targets cfg configures. A missing target
// only disables that target; its jobs fail with ErrTargetNotConfigured.
// The returned func releases the warehouse client.
func FromConfig(ctx context.Context, cfg *config.Config, source LedgerSource, log zerolog.Logger) (*Exporter, func()) {
	var opts []Option
	cleanup := func() {}

	if cfg.GCP.Bucket != "" {
		opts = append(opts, WithObjectStore(gcsuploader.NewGCSStorageService(), cfg.GCP.Bucket))
	} else {
		log.Warn().Msg("No GCS bucket configured - CSV exports will be disabled")
	}

	if err := cfg.Validate("gcp.project", "bigquery.dataset", "bigquery.table"); err != nil {
		log.Warn().Err(err).Msg("BigQuery mirror disabled")
	} else {
		mirror, err := infraBQ.NewLedgerMirror(ctx, infraBQ.TableRef{
			Project: cfg.GCP.Project,
			Dataset: cfg.GCP.BigQueryDataset,
			Table:   cfg.GCP.BigQueryTable,
		})
		if err != nil {
			log.Warn().Err(err).Msg("BigQuery mirror disabled")
		} else {
			opts = append(opts, WithWarehouse(mirror))
			cleanup = func() { mirror.Close() }
		}
	}

	return NewExporter(source, log, opts...), cleanup
}
