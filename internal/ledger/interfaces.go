package ledger

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
)

// Reader is the read side shared by the store and an open unit of work.
// Point lookups return (nil, nil) when the row does not exist; ownership is
// checked by the caller, never assumed from the store.
type Reader interface {
	// GetAccount looks an account up by id.
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// GetCategory looks a category up by id.
	GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error)

	// ListAccounts returns the accounts owned by userID ordered by creation time.
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error)

	// ListCategories returns the categories owned by userID ordered by name,
	// optionally restricted to one type.
	ListCategories(ctx context.Context, userID uuid.UUID, typ domain.CategoryType) ([]*domain.Category, error)

	// QueryTransactions scans the transaction log with the composed predicates and ordering.
	QueryTransactions(ctx context.Context, q Query) ([]*domain.Transaction, error)
}

// Tx is a unit of work. Everything written through it commits together or not at all.
type Tx interface {
	Reader

	// InsertAccount persists a new account.
	InsertAccount(ctx context.Context, a *domain.Account) error

	// UpdateAccount overwrites the mutable columns of an existing account.
	UpdateAccount(ctx context.Context, a *domain.Account) error

	// InsertCategory persists a new category.
	InsertCategory(ctx context.Context, c *domain.Category) error

	// DeleteCategory removes a category row.
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	// ClearCategory nulls the category link of userID's transactions that reference categoryID
	// and returns how many rows changed.
	ClearCategory(ctx context.Context, userID, categoryID uuid.UUID) (int64, error)

	// InsertTransactions persists every row or none of them.
	InsertTransactions(ctx context.Context, rows []*domain.Transaction) error
}

// Store is the persistence collaborator of the ledger.
type Store interface {
	Reader

	// RunInTx runs fn inside a unit of work. The work commits when fn returns nil
	// and is rolled back on any error or panic.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
