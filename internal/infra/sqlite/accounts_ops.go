package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
)

const accountColumns = `id, user_id, name, type, initial_balance, active, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(r rowScanner) (*domain.Account, error) {
	var (
		a         domain.Account
		typ       string
		createdAt string
	)
	if err := r.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.InitialBalance, &a.Active, &createdAt); err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)
	t, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = t
	return &a, nil
}

// GetAccount returns the account with the given id, or nil if absent.
func (o ops) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := o.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

// ListAccounts returns the accounts of userID, oldest first.
func (o ops) ListAccounts(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	rows, err := o.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: querying: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: scanning: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccounts: iterating: %w", err)
	}
	return out, nil
}

// InsertAccount persists a new account.
func (o txOps) InsertAccount(ctx context.Context, a *domain.Account) error {
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.Type), a.InitialBalance, a.Active, formatTimestamp(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("InsertAccount: %w", err)
	}
	return nil
}

// UpdateAccount writes the mutable account columns. Type and owner are never touched.
func (o txOps) UpdateAccount(ctx context.Context, a *domain.Account) error {
	res, err := o.q.ExecContext(ctx,
		`UPDATE accounts SET name = ?, active = ?, initial_balance = ? WHERE id = ?`,
		a.Name, a.Active, a.InitialBalance, a.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateAccount: reading affected rows: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("UpdateAccount: account %s does not exist", a.ID)
	}
	return nil
}
