package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
)

// CreateCategory stores a new category for userID.
func (s *Service) CreateCategory(ctx context.Context, userID uuid.UUID, name string, typ domain.CategoryType) (*domain.Category, error) {
	cat := &domain.Category{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Type:      typ,
		CreatedAt: s.timestamp(),
	}
	if err := cat.Validate(); err != nil {
		return nil, s.rejected("create_category", userID, err)
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertCategory(ctx, cat); err != nil {
			return fmt.Errorf("CreateCategory: inserting category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("create_category", userID, err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("category_id", cat.ID.String()).
		Str("type", string(cat.Type)).
		Msg("Category created")
	return cat, nil
}

// ListCategories returns userID's categories by name. An empty typ lists both kinds.
func (s *Service) ListCategories(ctx context.Context, userID uuid.UUID, typ domain.CategoryType) ([]*domain.Category, error) {
	if typ != "" && !typ.Valid() {
		return nil, s.rejected("list_categories", userID,
			domain.NewValidationError("type", domain.CodeInvalid, "unknown category type %q", typ))
	}
	cats, err := s.store.ListCategories(ctx, userID, typ)
	if err != nil {
		return nil, s.rejected("list_categories", userID, fmt.Errorf("ListCategories: %w", err))
	}
	return cats, nil
}

// DeleteCategory removes a category. Transactions that referenced it keep
// their amounts and simply lose the category link.
func (s *Service) DeleteCategory(ctx context.Context, userID, categoryID uuid.UUID) error {
	var cleared int64
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := ownedCategory(ctx, tx, userID, categoryID, "category_id"); err != nil {
			return err
		}
		n, err := tx.ClearCategory(ctx, userID, categoryID)
		if err != nil {
			return fmt.Errorf("DeleteCategory: clearing transactions: %w", err)
		}
		if err := tx.DeleteCategory(ctx, categoryID); err != nil {
			return fmt.Errorf("DeleteCategory: deleting category: %w", err)
		}
		cleared = n
		return nil
	})
	if err != nil {
		return s.rejected("delete_category", userID, err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("category_id", categoryID.String()).
		Int64("transactions_cleared", cleared).
		Msg("Category deleted")
	return nil
}
