package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	svc LedgerService
	log zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(svc LedgerService, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{
		svc: svc,
		log: log,
	}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	accounts, err := h.svc.ListAccounts(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Name           string             `json:"name"`
		Type           domain.AccountType `json:"type"`
		InitialBalance decimal.Decimal    `json:"initial_balance"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	acc, err := h.svc.CreateAccount(r.Context(), userID, ledger.CreateAccountRequest{
		Name:           req.Name,
		Type:           req.Type,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create account")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, acc)
}

// PatchAccount handles PATCH /api/accounts/{id}
func (h *AccountsHandler) PatchAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "account")
	if !ok {
		return
	}

	var req struct {
		Name           *string          `json:"name"`
		Active         *bool            `json:"active"`
		InitialBalance *decimal.Decimal `json:"initial_balance"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	acc, err := h.svc.PatchAccount(r.Context(), userID, accountID, domain.AccountPatch{
		Name:           req.Name,
		Active:         req.Active,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update account")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, acc)
}

// GetBalance handles GET /api/accounts/{id}/balance
func (h *AccountsHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	accountID, ok := pathID(w, r, "account")
	if !ok {
		return
	}

	pos, err := h.svc.AccountBalance(r.Context(), userID, accountID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to compute balance")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, pos)
}
