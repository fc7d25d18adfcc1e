package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// insertBatchSize bounds the rows sent in one streaming insert call.
const insertBatchSize = 500

// TableRef names the warehouse table.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

func (r TableRef) handle(client *bigquery.Client) *bigquery.Table {
	return client.DatasetInProject(r.Project, r.Dataset).Table(r.Table)
}

// EnsureLedgerTableWithClient creates the warehouse table when it does not exist yet.
// The schema is inferred from LedgerRow and partitioned by transaction_date.
func EnsureLedgerTableWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) error {
	table := ref.handle(client)
	if _, err := table.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("EnsureLedgerTable: reading metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(LedgerRow{})
	if err != nil {
		return fmt.Errorf("EnsureLedgerTable: inferring schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.MonthPartitioningType,
			Field: "transaction_date",
		},
	}
	if err := table.Create(ctx, meta); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureLedgerTable: creating table: %w", err)
	}
	return nil
}

// InsertLedgerRowsWithClient streams rows into the warehouse table in batches.
func InsertLedgerRowsWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, rows []*LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := ref.handle(client).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertLedgerRows: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// LatestCreatedTSWithClient returns the newest created_ts already mirrored for
// userID. ok is false when nothing has been mirrored yet.
func LatestCreatedTSWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, userID string) (ts time.Time, ok bool, err error) {
	q := client.Query(fmt.Sprintf(
		"SELECT MAX(created_ts) AS latest FROM `%s.%s.%s` WHERE user_id = @user_id",
		ref.Project, ref.Dataset, ref.Table,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("LatestCreatedTS: running query: %w", err)
	}

	var row struct {
		Latest bigquery.NullTimestamp `bigquery:"latest"`
	}
	for {
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return time.Time{}, false, fmt.Errorf("LatestCreatedTS: iterating results: %w", err)
		}
	}

	if !row.Latest.Valid {
		return time.Time{}, false, nil
	}
	return row.Latest.Timestamp, true, nil
}

// LedgerMirror writes ledger rows to one warehouse table with a shared client.
type LedgerMirror struct {
	client *bigquery.Client
	ref    TableRef
	now    func() time.Time
}

// NewLedgerMirror creates a client for project and makes sure the table exists.
func NewLedgerMirror(ctx context.Context, ref TableRef) (*LedgerMirror, error) {
	client, err := bigquery.NewClient(ctx, ref.Project)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerMirror: creating client: %w", err)
	}
	if err := EnsureLedgerTableWithClient(ctx, client, ref); err != nil {
		client.Close()
		return nil, err
	}
	return &LedgerMirror{client: client, ref: ref, now: time.Now}, nil
}

// Close closes the BigQuery client connection.
func (m *LedgerMirror) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// LatestCreatedAt delegates to LatestCreatedTSWithClient.
func (m *LedgerMirror) LatestCreatedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	return LatestCreatedTSWithClient(ctx, m.client, m.ref, userID)
}

// Mirror converts and inserts transactions.
func (m *LedgerMirror) Mirror(ctx context.Context, txs []*domain.Transaction) error {
	exportedAt := m.now()
	rows := make([]*LedgerRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, NewLedgerRow(t, exportedAt))
	}
	return InsertLedgerRowsWithClient(ctx, m.client, m.ref, rows)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
