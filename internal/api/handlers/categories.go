package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	svc LedgerService
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(svc LedgerService, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{
		svc: svc,
		log: log,
	}
}

// ListCategories handles GET /api/categories?type=
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	typ := domain.CategoryType(r.URL.Query().Get("type"))
	categories, err := h.svc.ListCategories(r.Context(), userID, typ)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string              `json:"name"`
		Type domain.CategoryType `json:"type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cat, err := h.svc.CreateCategory(r.Context(), userID, req.Name, req.Type)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create category")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, cat)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "category")
	if !ok {
		return
	}

	if err := h.svc.DeleteCategory(r.Context(), userID, categoryID); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete category")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
