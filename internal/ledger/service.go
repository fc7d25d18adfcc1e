// Package ledger is the posting engine of the finance ledger. It decides which
// transaction rows an operation produces, validates them against the accounts
// and categories they reference, writes them through a unit of work, and
// derives balances and reports from the resulting log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service exposes every ledger operation for one store. It keeps no state
// between calls besides its collaborators.
type Service struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the clock used for server-assigned creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service on top of store.
func NewService(store Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns the creation time for rows written now.
func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// ownedAccount loads an account and hides it unless userID owns it.
func ownedAccount(ctx context.Context, r Reader, userID, id uuid.UUID, field string) (*domain.Account, error) {
	acc, err := r.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up account %s: %w", id, err)
	}
	if acc == nil || acc.UserID != userID {
		return nil, &domain.NotFoundError{Entity: entityLabel(field, "account"), Field: field}
	}
	return acc, nil
}

// ownedCategory loads a category and hides it unless userID owns it.
func ownedCategory(ctx context.Context, r Reader, userID, id uuid.UUID, field string) (*domain.Category, error) {
	cat, err := r.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up category %s: %w", id, err)
	}
	if cat == nil || cat.UserID != userID {
		return nil, &domain.NotFoundError{Entity: entityLabel(field, "category"), Field: field}
	}
	return cat, nil
}

// expenseCategory loads a category that a compound operation books an expense
// leg against. Missing, foreign and income categories are all rejected as
// invalid input rather than not-found.
func expenseCategory(ctx context.Context, r Reader, userID, id uuid.UUID, field string) (*domain.Category, error) {
	cat, err := r.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up category %s: %w", id, err)
	}
	if cat == nil || cat.UserID != userID || cat.Type != domain.CategoryTypeExpense {
		return nil, domain.NewValidationError(field, domain.CodeInvalidCategory, "must reference one of your expense categories")
	}
	return cat, nil
}

func entityLabel(field, fallback string) string {
	switch field {
	case "from_account_id":
		return "from account"
	case "to_account_id":
		return "to account"
	case "bank_account_id":
		return "bank account"
	case "credit_card_account_id":
		return "credit card account"
	default:
		return fallback
	}
}

// rejected logs a failed operation and passes err through. Caller mistakes are
// logged at debug, store failures at error.
func (s *Service) rejected(op string, userID uuid.UUID, err error) error {
	ev := s.log.Error()
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
		ev = s.log.Debug()
	}
	ev.Err(err).
		Str("operation", op).
		Str("user_id", userID.String()).
		Msg("Operation rejected")
	return err
}
