package handlers

import (
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OperationsHandler handles the compound posting endpoints.
type OperationsHandler struct {
	svc LedgerService
	log zerolog.Logger
}

// NewOperationsHandler creates a new operations handler.
func NewOperationsHandler(svc LedgerService, log zerolog.Logger) *OperationsHandler {
	return &OperationsHandler{
		svc: svc,
		log: log,
	}
}

// Transfer handles POST /api/operations/transfer
func (h *OperationsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		FromAccountID   uuid.UUID            `json:"from_account_id"`
		ToAccountID     uuid.UUID            `json:"to_account_id"`
		Amount          decimal.Decimal      `json:"amount"`
		TransactionDate civil.Date           `json:"transaction_date"`
		PaymentMethod   domain.PaymentMethod `json:"payment_method"`
		Fee             decimal.Decimal      `json:"fee"`
		FeeCategoryID   uuid.NullUUID        `json:"fee_category_id"`
		Description     string               `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.Transfer(r.Context(), userID, ledger.TransferRequest{
		FromAccountID:   req.FromAccountID,
		ToAccountID:     req.ToAccountID,
		Amount:          req.Amount,
		TransactionDate: req.TransactionDate,
		PaymentMethod:   req.PaymentMethod,
		Fee:             req.Fee,
		FeeCategoryID:   req.FeeCategoryID,
		Description:     req.Description,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to post transfer")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, result)
}

// PayCreditCard handles POST /api/operations/credit-card-payment
func (h *OperationsHandler) PayCreditCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		BankAccountID       uuid.UUID            `json:"bank_account_id"`
		CreditCardAccountID uuid.UUID            `json:"credit_card_account_id"`
		Amount              decimal.Decimal      `json:"amount"`
		TransactionDate     civil.Date           `json:"transaction_date"`
		PaymentMethod       domain.PaymentMethod `json:"payment_method"`
		PaymentCategoryID   uuid.UUID            `json:"payment_category_id"`
		Fee                 decimal.Decimal      `json:"fee"`
		FeeCategoryID       uuid.NullUUID        `json:"fee_category_id"`
		Reference           string               `json:"reference"`
		Description         string               `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.PayCreditCard(r.Context(), userID, ledger.CreditCardPaymentRequest{
		BankAccountID:       req.BankAccountID,
		CreditCardAccountID: req.CreditCardAccountID,
		Amount:              req.Amount,
		TransactionDate:     req.TransactionDate,
		PaymentMethod:       req.PaymentMethod,
		PaymentCategoryID:   req.PaymentCategoryID,
		Fee:                 req.Fee,
		FeeCategoryID:       req.FeeCategoryID,
		Reference:           req.Reference,
		Description:         req.Description,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to post credit card payment")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, result)
}
