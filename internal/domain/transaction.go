package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one row of the ledger log. Rows are only ever created by the
// posting engine; they are never updated, except that deleting a category
// clears CategoryID on the rows that referenced it.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	AccountID       uuid.UUID       `json:"account_id"`
	CategoryID      uuid.NullUUID   `json:"category_id"`
	Type            TransactionType `json:"type"`
	PaymentMethod   PaymentMethod   `json:"payment_method,omitempty"`
	Amount          decimal.Decimal `json:"amount"`           // always > 0, direction lives in Type
	TransactionDate civil.Date      `json:"transaction_date"` // calendar date, no time zone
	Description     string          `json:"description,omitempty"`
	Counterparty    string          `json:"counterparty,omitempty"`
	GroupID         uuid.NullUUID   `json:"group_id"` // shared by all legs of one compound operation
	CreatedAt       time.Time       `json:"created_at"`
}

// Validate checks the row-level invariants. Cross-entity rules (ownership,
// account-type compatibility) are the posting engine's job.
func (t *Transaction) Validate() error {
	if t.UserID == uuid.Nil {
		return NewValidationError("user_id", CodeRequired, "owner is required")
	}
	if t.AccountID == uuid.Nil {
		return NewValidationError("account_id", CodeRequired, "account is required")
	}
	if !t.Type.Valid() {
		return NewValidationError("type", CodeInvalid, "unknown transaction type %q", t.Type)
	}
	if t.PaymentMethod != "" && !t.PaymentMethod.Valid() {
		return NewValidationError("payment_method", CodeInvalid, "unknown payment method %q", t.PaymentMethod)
	}
	if err := ValidateAmount("amount", t.Amount); err != nil {
		return err
	}
	return ValidateDate("transaction_date", t.TransactionDate)
}

// ValidateDate accepts real calendar dates in years 0000 through 9999, the
// range whose YYYY-MM-DD form sorts in date order.
func ValidateDate(field string, d civil.Date) error {
	if !d.IsValid() || d.Year < 0 || d.Year > 9999 {
		return NewValidationError(field, CodeInvalid, "invalid date %q", d)
	}
	return nil
}

// ValidateAmount rejects zero and negative amounts. They are never coerced.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError(field, CodeInvalid, "must be greater than 0, got %s", amount)
	}
	return nil
}
