package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a user-owned money container. Its Type is fixed at creation.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	InitialBalance decimal.Decimal `json:"initial_balance"` // signed; opening debt for credit cards
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (a *Account) Validate() error {
	if a.UserID == uuid.Nil {
		return NewValidationError("user_id", CodeRequired, "owner is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return NewValidationError("name", CodeRequired, "name is required")
	}
	if !a.Type.Valid() {
		return NewValidationError("type", CodeInvalid, "unknown account type %q", a.Type)
	}
	return nil
}

// AccountPatch carries the only mutable account fields. Nil means unchanged.
type AccountPatch struct {
	Name           *string
	Active         *bool
	InitialBalance *decimal.Decimal
}

// Apply mutates a according to p and validates the result.
func (p AccountPatch) Apply(a *Account) error {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	if p.InitialBalance != nil {
		a.InitialBalance = *p.InitialBalance
	}
	return a.Validate()
}
