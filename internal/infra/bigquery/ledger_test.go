package bigquery

import (
	"errors"
	"math/big"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
)

func TestNewLedgerRow(t *testing.T) {
	created := time.Date(2024, time.March, 10, 12, 0, 0, 5, time.UTC)
	exported := time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)
	group := uuid.New()
	tx := &domain.Transaction{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		AccountID:       uuid.New(),
		Type:            domain.TransactionTypeTransferOut,
		PaymentMethod:   domain.PaymentMethodBankTransfer,
		Amount:          decimal.RequireFromString("200.15"),
		TransactionDate: civil.Date{Year: 2024, Month: time.March, Day: 10},
		Description:     "Rent",
		GroupID:         uuid.NullUUID{UUID: group, Valid: true},
		CreatedAt:       created,
	}

	row := NewLedgerRow(tx, exported)

	if row.TransactionID != tx.ID.String() || row.Type != "transfer_out" {
		t.Errorf("Unexpected identity columns %+v", row)
	}
	if row.Amount.Cmp(big.NewRat(20015, 100)) != 0 {
		t.Errorf("Amount = %s, want 200.15", row.Amount.FloatString(2))
	}
	if row.CategoryID.Valid {
		t.Error("Expected NULL category_id")
	}
	if !row.GroupID.Valid || row.GroupID.StringVal != group.String() {
		t.Errorf("GroupID = %+v", row.GroupID)
	}
	if row.PaymentMethod.StringVal != "bank_transfer" || row.Description.StringVal != "Rent" || row.Counterparty.Valid {
		t.Errorf("Unexpected optional columns %+v", row)
	}
	if !row.CreatedTS.Equal(created) || !row.ExportedTS.Equal(exported) {
		t.Errorf("Unexpected timestamps %v / %v", row.CreatedTS, row.ExportedTS)
	}
}

func TestLedgerRowSchema(t *testing.T) {
	schema, err := bigquery.InferSchema(LedgerRow{})
	if err != nil {
		t.Fatalf("InferSchema() error = %v", err)
	}

	types := map[string]bigquery.FieldType{}
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	want := map[string]bigquery.FieldType{
		"amount":           bigquery.NumericFieldType,
		"transaction_date": bigquery.DateFieldType,
		"created_ts":       bigquery.TimestampFieldType,
		"category_id":      bigquery.StringFieldType,
	}
	for name, typ := range want {
		if types[name] != typ {
			t.Errorf("column %s has type %s, want %s", name, types[name], typ)
		}
	}
}

func TestAPIErrorClassification(t *testing.T) {
	notFound := &googleapi.Error{Code: http.StatusNotFound}
	conflict := &googleapi.Error{Code: http.StatusConflict}

	if !isNotFound(notFound) || isNotFound(conflict) || isNotFound(errors.New("x")) {
		t.Error("isNotFound misclassified")
	}
	if !isAlreadyExists(conflict) || isAlreadyExists(notFound) {
		t.Error("isAlreadyExists misclassified")
	}
}
