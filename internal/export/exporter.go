// Package export writes a user's ledger out of the primary store: as a CSV
// snapshot to object storage, or as an incremental mirror into the warehouse.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LedgerSource is the read side of the ledger service that exports need.
type LedgerSource interface {
	ListTransactions(ctx context.Context, userID uuid.UUID, f ledger.TransactionFilter) ([]*domain.Transaction, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error)
	ListCategories(ctx context.Context, userID uuid.UUID, typ domain.CategoryType) ([]*domain.Category, error)
}

// ObjectStore uploads a finished export file.
type ObjectStore interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, r io.Reader) error
}

// Warehouse is an append-only analytics copy of the ledger.
type Warehouse interface {
	// LatestCreatedAt returns the newest mirrored creation time for userID.
	LatestCreatedAt(ctx context.Context, userID string) (time.Time, bool, error)

	Mirror(ctx context.Context, txs []*domain.Transaction) error
}

// ErrTargetNotConfigured is returned when a job asks for a target without a backend.
var ErrTargetNotConfigured = errors.New("export target not configured")

const csvContentType = "text/csv"

var csvHeader = []string{
	"id", "transaction_date", "type", "account_id", "account_name",
	"category_id", "category_name", "payment_method", "amount",
	"description", "counterparty", "group_id", "created_at",
}

// Exporter renders and ships ledger exports.
type Exporter struct {
	source    LedgerSource
	objects   ObjectStore
	bucket    string
	warehouse Warehouse
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithObjectStore enables CSV uploads into bucket.
func WithObjectStore(store ObjectStore, bucket string) Option {
	return func(e *Exporter) {
		e.objects = store
		e.bucket = bucket
	}
}

// WithWarehouse enables the warehouse mirror.
func WithWarehouse(w Warehouse) Option {
	return func(e *Exporter) {
		e.warehouse = w
	}
}

// WithClock overrides the clock used for object names.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// NewExporter creates an Exporter reading from source.
func NewExporter(source LedgerSource, log zerolog.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportCSV writes userID's full transaction log to w, newest first, and
// returns the number of data rows written.
func (e *Exporter) ExportCSV(ctx context.Context, userID uuid.UUID, w io.Writer) (int, error) {
	txs, err := e.source.ListTransactions(ctx, userID, ledger.TransactionFilter{})
	if err != nil {
		return 0, fmt.Errorf("ExportCSV: listing transactions: %w", err)
	}
	accounts, err := e.source.ListAccounts(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("ExportCSV: listing accounts: %w", err)
	}
	categories, err := e.source.ListCategories(ctx, userID, "")
	if err != nil {
		return 0, fmt.Errorf("ExportCSV: listing categories: %w", err)
	}

	accountNames := make(map[uuid.UUID]string, len(accounts))
	for _, a := range accounts {
		accountNames[a.ID] = a.Name
	}
	categoryNames := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("ExportCSV: writing header: %w", err)
	}
	for _, t := range txs {
		var categoryID, categoryName, groupID string
		if t.CategoryID.Valid {
			categoryID = t.CategoryID.UUID.String()
			categoryName = categoryNames[t.CategoryID.UUID]
		}
		if t.GroupID.Valid {
			groupID = t.GroupID.UUID.String()
		}
		record := []string{
			t.ID.String(),
			t.TransactionDate.String(),
			string(t.Type),
			t.AccountID.String(),
			accountNames[t.AccountID],
			categoryID,
			categoryName,
			string(t.PaymentMethod),
			t.Amount.String(),
			t.Description,
			t.Counterparty,
			groupID,
			t.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("ExportCSV: writing row %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("ExportCSV: flushing: %w", err)
	}
	return len(txs), nil
}

// ObjectName is where a CSV export taken at ts is stored.
func ObjectName(userID uuid.UUID, ts time.Time) string {
	return fmt.Sprintf("exports/%s/%s-%s.csv", userID, ts.UTC().Format("20060102-150405"), uuid.NewString())
}

// ExportToGCS uploads a CSV snapshot and returns its gs:// URI.
func (e *Exporter) ExportToGCS(ctx context.Context, userID uuid.UUID) (string, error) {
	if e.objects == nil || e.bucket == "" {
		return "", fmt.Errorf("ExportToGCS: %w", ErrTargetNotConfigured)
	}

	var buf bytes.Buffer
	n, err := e.ExportCSV(ctx, userID, &buf)
	if err != nil {
		return "", err
	}

	object := ObjectName(userID, e.now())
	if err := e.objects.UploadObject(ctx, e.bucket, object, csvContentType, &buf); err != nil {
		return "", fmt.Errorf("ExportToGCS: uploading %s: %w", object, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", e.bucket, object)
	e.log.Info().
		Str("user_id", userID.String()).
		Str("gcs_uri", uri).
		Int("rows", n).
		Msg("Ledger exported to GCS")
	return uri, nil
}

// MirrorToBigQuery copies userID's rows created after the warehouse's latest
// mirrored row and returns how many were sent. Rows are sent oldest first.
func (e *Exporter) MirrorToBigQuery(ctx context.Context, userID uuid.UUID) (int, error) {
	if e.warehouse == nil {
		return 0, fmt.Errorf("MirrorToBigQuery: %w", ErrTargetNotConfigured)
	}

	watermark, ok, err := e.warehouse.LatestCreatedAt(ctx, userID.String())
	if err != nil {
		return 0, fmt.Errorf("MirrorToBigQuery: reading watermark: %w", err)
	}

	txs, err := e.source.ListTransactions(ctx, userID, ledger.TransactionFilter{})
	if err != nil {
		return 0, fmt.Errorf("MirrorToBigQuery: listing transactions: %w", err)
	}

	pending := make([]*domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if ok && !t.CreatedAt.After(watermark) {
			continue
		}
		pending = append(pending, t)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if len(pending) > 0 {
		if err := e.warehouse.Mirror(ctx, pending); err != nil {
			return 0, fmt.Errorf("MirrorToBigQuery: %w", err)
		}
	}

	e.log.Info().
		Str("user_id", userID.String()).
		Int("rows", len(pending)).
		Bool("had_watermark", ok).
		Msg("Ledger mirrored to BigQuery")
	return len(pending), nil
}

// HandleJob runs an export job from the queue and records its result on the job.
func (e *Exporter) HandleJob(ctx context.Context, job jobs.Job) error {
	exportJob, ok := job.(*jobs.ExportJob)
	if !ok {
		return fmt.Errorf("HandleJob: unexpected job type %s", job.GetType())
	}

	userID, err := uuid.Parse(exportJob.UserID)
	if err != nil {
		return fmt.Errorf("HandleJob: invalid user id %q: %w", exportJob.UserID, err)
	}

	switch exportJob.Target {
	case jobs.ExportTargetGCS:
		uri, err := e.ExportToGCS(ctx, userID)
		if err != nil {
			return err
		}
		exportJob.Result = uri
	case jobs.ExportTargetBigQuery:
		n, err := e.MirrorToBigQuery(ctx, userID)
		if err != nil {
			return err
		}
		exportJob.Result = fmt.Sprintf("%d rows mirrored", n)
	default:
		return fmt.Errorf("HandleJob: unknown export target %q", exportJob.Target)
	}
	return nil
}
