package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
)

const categoryColumns = `id, user_id, name, type, created_at`

func scanCategory(r rowScanner) (*domain.Category, error) {
	var (
		c         domain.Category
		typ       string
		createdAt string
	)
	if err := r.Scan(&c.ID, &c.UserID, &c.Name, &typ, &createdAt); err != nil {
		return nil, err
	}
	c.Type = domain.CategoryType(typ)
	t, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t
	return &c, nil
}

// GetCategory returns the category with the given id, or nil if absent.
func (o ops) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	row := o.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetCategory: %w", err)
	}
	return c, nil
}

// ListCategories returns userID's categories by name, optionally of one type.
func (o ops) ListCategories(ctx context.Context, userID uuid.UUID, typ domain.CategoryType) ([]*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ?`
	args := []interface{}{userID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY name, id`

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: querying: %w", err)
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListCategories: scanning: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategories: iterating: %w", err)
	}
	return out, nil
}

// InsertCategory persists a new category.
func (o txOps) InsertCategory(ctx context.Context, c *domain.Category) error {
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), formatTimestamp(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("InsertCategory: %w", err)
	}
	return nil
}

// DeleteCategory removes the category row. Remaining references are nulled
// by the foreign key.
func (o txOps) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := o.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	return nil
}

// ClearCategory unlinks userID's transactions from categoryID.
func (o txOps) ClearCategory(ctx context.Context, userID, categoryID uuid.UUID) (int64, error) {
	res, err := o.q.ExecContext(ctx,
		`UPDATE transactions SET category_id = NULL WHERE user_id = ? AND category_id = ?`,
		userID, categoryID,
	)
	if err != nil {
		return 0, fmt.Errorf("ClearCategory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ClearCategory: reading affected rows: %w", err)
	}
	return n, nil
}
