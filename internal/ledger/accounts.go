package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest opens a new account. A zero InitialBalance is fine.
type CreateAccountRequest struct {
	Name           string
	Type           domain.AccountType
	InitialBalance decimal.Decimal
}

// CreateAccount stores a new active account for userID.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, req CreateAccountRequest) (*domain.Account, error) {
	acc := &domain.Account{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           strings.TrimSpace(req.Name),
		Type:           req.Type,
		InitialBalance: req.InitialBalance,
		Active:         true,
		CreatedAt:      s.timestamp(),
	}
	if err := acc.Validate(); err != nil {
		return nil, s.rejected("create_account", userID, err)
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertAccount(ctx, acc); err != nil {
			return fmt.Errorf("CreateAccount: inserting account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("create_account", userID, err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("account_id", acc.ID.String()).
		Str("type", string(acc.Type)).
		Msg("Account created")
	return acc, nil
}

// ListAccounts returns userID's accounts, oldest first.
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, s.rejected("list_accounts", userID, fmt.Errorf("ListAccounts: %w", err))
	}
	return accounts, nil
}

// PatchAccount changes the name, active flag or initial balance of an account.
// The account type cannot be changed.
func (s *Service) PatchAccount(ctx context.Context, userID, accountID uuid.UUID, patch domain.AccountPatch) (*domain.Account, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}

	var updated *domain.Account
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		acc, err := ownedAccount(ctx, tx, userID, accountID, "account_id")
		if err != nil {
			return err
		}
		if err := patch.Apply(acc); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return fmt.Errorf("PatchAccount: updating account: %w", err)
		}
		updated = acc
		return nil
	})
	if err != nil {
		return nil, s.rejected("patch_account", userID, err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("account_id", accountID.String()).
		Msg("Account updated")
	return updated, nil
}
