package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// LedgerRow is one mirrored ledger transaction in the warehouse table.
type LedgerRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED
	AccountID     string `bigquery:"account_id"`     // REQUIRED

	CategoryID bigquery.NullString `bigquery:"category_id"` // NULLABLE
	GroupID    bigquery.NullString `bigquery:"group_id"`    // NULLABLE

	Type          string              `bigquery:"type"`           // REQUIRED
	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE

	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Description  bigquery.NullString `bigquery:"description"`  // NULLABLE
	Counterparty bigquery.NullString `bigquery:"counterparty"` // NULLABLE

	CreatedTS  time.Time `bigquery:"created_ts"`  // REQUIRED, ledger creation time
	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// NewLedgerRow converts a ledger transaction for insertion.
func NewLedgerRow(t *domain.Transaction, exportedAt time.Time) *LedgerRow {
	row := &LedgerRow{
		TransactionID:   t.ID.String(),
		UserID:          t.UserID.String(),
		AccountID:       t.AccountID.String(),
		Type:            string(t.Type),
		Amount:          t.Amount.Rat(),
		TransactionDate: t.TransactionDate,
		CreatedTS:       t.CreatedAt.UTC(),
		ExportedTS:      exportedAt.UTC(),
	}
	if t.CategoryID.Valid {
		row.CategoryID = bigquery.NullString{StringVal: t.CategoryID.UUID.String(), Valid: true}
	}
	if t.GroupID.Valid {
		row.GroupID = bigquery.NullString{StringVal: t.GroupID.UUID.String(), Valid: true}
	}
	if t.PaymentMethod != "" {
		row.PaymentMethod = bigquery.NullString{StringVal: string(t.PaymentMethod), Valid: true}
	}
	if t.Description != "" {
		row.Description = bigquery.NullString{StringVal: t.Description, Valid: true}
	}
	if t.Counterparty != "" {
		row.Counterparty = bigquery.NullString{StringVal: t.Counterparty, Valid: true}
	}
	return row
}
