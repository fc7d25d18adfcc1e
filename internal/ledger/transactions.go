package ledger

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
)

// ListTransactions returns userID's transactions matching f, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, f TransactionFilter) ([]*domain.Transaction, error) {
	q, err := ComposeFilter(userID, f)
	if err != nil {
		return nil, s.rejected("list_transactions", userID, err)
	}
	txs, err := s.store.QueryTransactions(ctx, q)
	if err != nil {
		return nil, s.rejected("list_transactions", userID, fmt.Errorf("ListTransactions: %w", err))
	}
	return txs, nil
}
