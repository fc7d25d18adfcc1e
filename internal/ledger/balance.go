package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionKind says which quantity a Position carries. Bank and cash accounts
// have a balance; credit cards have a debt with the opposite sign convention.
type PositionKind string

const (
	PositionBalance PositionKind = "balance"
	PositionDebt    PositionKind = "debt"
)

// Position is the folded state of one account.
type Position struct {
	AccountID   uuid.UUID
	AccountType domain.AccountType
	Kind        PositionKind
	Amount      decimal.Decimal
}

// MarshalJSON renders the amount under the key named by Kind, so a debt can
// never be read as a balance.
func (p Position) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"account_id": p.AccountID,
		"type":       p.AccountType,
	}
	out[string(p.Kind)] = p.Amount
	return json.Marshal(out)
}

// Fold derives the position of acc from its complete transaction list.
// Every row must belong to acc. Rows whose type does not affect the account
// kind (for example income on a credit card) are ignored.
func Fold(acc *domain.Account, txs []*domain.Transaction) (Position, error) {
	pos := Position{
		AccountID:   acc.ID,
		AccountType: acc.Type,
		Amount:      acc.InitialBalance,
	}

	for _, t := range txs {
		if t.AccountID != acc.ID {
			return Position{}, fmt.Errorf("Fold: transaction %s belongs to account %s, not %s", t.ID, t.AccountID, acc.ID)
		}
	}

	switch acc.Type {
	case domain.AccountTypeBank, domain.AccountTypeCash:
		pos.Kind = PositionBalance
		for _, t := range txs {
			switch t.Type {
			case domain.TransactionTypeIncome, domain.TransactionTypeTransferIn:
				pos.Amount = pos.Amount.Add(t.Amount)
			case domain.TransactionTypeExpense, domain.TransactionTypeTransferOut:
				pos.Amount = pos.Amount.Sub(t.Amount)
			case domain.TransactionTypeCreditPayment:
			default:
				return Position{}, fmt.Errorf("Fold: unknown transaction type %q", t.Type)
			}
		}
	case domain.AccountTypeCreditCard:
		pos.Kind = PositionDebt
		for _, t := range txs {
			switch t.Type {
			case domain.TransactionTypeExpense:
				pos.Amount = pos.Amount.Add(t.Amount)
			case domain.TransactionTypeCreditPayment:
				pos.Amount = pos.Amount.Sub(t.Amount)
			case domain.TransactionTypeIncome, domain.TransactionTypeTransferIn, domain.TransactionTypeTransferOut:
			default:
				return Position{}, fmt.Errorf("Fold: unknown transaction type %q", t.Type)
			}
		}
	default:
		return Position{}, fmt.Errorf("Fold: unknown account type %q", acc.Type)
	}

	return pos, nil
}

// AccountBalance recomputes the balance or debt of one of userID's accounts
// from its full history. Nothing is cached.
func (s *Service) AccountBalance(ctx context.Context, userID, accountID uuid.UUID) (Position, error) {
	acc, err := ownedAccount(ctx, s.store, userID, accountID, "account_id")
	if err != nil {
		return Position{}, err
	}

	q, err := ComposeFilter(userID, TransactionFilter{AccountID: uuid.NullUUID{UUID: acc.ID, Valid: true}})
	if err != nil {
		return Position{}, err
	}
	txs, err := s.store.QueryTransactions(ctx, q)
	if err != nil {
		return Position{}, fmt.Errorf("AccountBalance: querying transactions: %w", err)
	}

	return Fold(acc, txs)
}
