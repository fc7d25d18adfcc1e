package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
)

const transactionColumns = `id, user_id, account_id, category_id, type, payment_method, amount,
	transaction_date, description, counterparty, group_id, created_at`

func scanTransaction(r rowScanner) (*domain.Transaction, error) {
	var (
		t         domain.Transaction
		typ       string
		method    sql.NullString
		date      string
		createdAt string
	)
	if err := r.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &typ, &method, &t.Amount,
		&date, &t.Description, &t.Counterparty, &t.GroupID, &createdAt); err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(typ)
	t.PaymentMethod = domain.PaymentMethod(method.String)

	var err error
	if t.TransactionDate, err = parseDate(date); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// QueryTransactions runs q as a single SELECT.
func (o ops) QueryTransactions(ctx context.Context, q ledger.Query) ([]*domain.Transaction, error) {
	query, args, err := compileQuery(q)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: %w", err)
	}

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: querying: %w", err)
	}
	defer rows.Close()

	out := []*domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: scanning: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QueryTransactions: iterating: %w", err)
	}
	return out, nil
}

// InsertTransactions writes rows with one prepared statement. The caller's
// transaction makes the batch atomic.
func (o txOps) InsertTransactions(ctx context.Context, rows []*domain.Transaction) error {
	tx, ok := o.q.(*sql.Tx)
	if !ok {
		return fmt.Errorf("InsertTransactions: not inside a transaction")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("InsertTransactions: preparing: %w", err)
	}
	defer stmt.Close()

	for _, t := range rows {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.UserID, t.AccountID, t.CategoryID, string(t.Type), nullPaymentMethod(t.PaymentMethod), t.Amount,
			formatDate(t.TransactionDate), t.Description, t.Counterparty, t.GroupID, formatTimestamp(t.CreatedAt),
		); err != nil {
			return fmt.Errorf("InsertTransactions: inserting %s: %w", t.ID, err)
		}
	}
	return nil
}

var orderColumns = map[ledger.OrderField]string{
	ledger.OrderByTransactionDate: "transaction_date",
	ledger.OrderByCreatedAt:       "created_at",
	ledger.OrderByID:              "id",
}

// compileQuery renders the predicates of q as a WHERE clause. Every predicate
// type must be handled here; an unknown one is an error rather than being
// silently dropped.
func compileQuery(q ledger.Query) (string, []interface{}, error) {
	var (
		where []string
		args  []interface{}
	)
	for _, p := range q.Predicates {
		switch p := p.(type) {
		case ledger.OwnerIs:
			where = append(where, "user_id = ?")
			args = append(args, p.UserID)
		case ledger.DateOnOrAfter:
			where = append(where, "transaction_date >= ?")
			args = append(args, formatDate(p.Date))
		case ledger.DateOnOrBefore:
			where = append(where, "transaction_date <= ?")
			args = append(args, formatDate(p.Date))
		case ledger.DateBefore:
			where = append(where, "transaction_date < ?")
			args = append(args, formatDate(p.Date))
		case ledger.AccountIs:
			where = append(where, "account_id = ?")
			args = append(args, p.AccountID)
		case ledger.CategoryIs:
			where = append(where, "category_id = ?")
			args = append(args, p.CategoryID)
		case ledger.PaymentMethodIs:
			where = append(where, "payment_method = ?")
			args = append(args, string(p.Method))
		case ledger.TypeIn:
			if len(p.Types) == 0 {
				where = append(where, "0")
				continue
			}
			marks := make([]string, len(p.Types))
			for i, typ := range p.Types {
				marks[i] = "?"
				args = append(args, string(typ))
			}
			where = append(where, "type IN ("+strings.Join(marks, ", ")+")")
		case ledger.TextContains:
			where = append(where, "(instr(casefold(description), casefold(?)) > 0 OR instr(casefold(counterparty), casefold(?)) > 0)")
			args = append(args, p.Text, p.Text)
		default:
			return "", nil, fmt.Errorf("unsupported predicate %T", p)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + transactionColumns + " FROM transactions")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	if len(q.Order) > 0 {
		terms := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			col, ok := orderColumns[o.Field]
			if !ok {
				return "", nil, fmt.Errorf("unsupported order field %q", o.Field)
			}
			if o.Desc {
				col += " DESC"
			}
			terms = append(terms, col)
		}
		sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	switch {
	case q.Limit > 0:
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		sb.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, q.Offset)
	}

	return sb.String(), args, nil
}
