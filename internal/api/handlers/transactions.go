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

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	svc LedgerService
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc LedgerService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc: svc,
		log: log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var f ledger.TransactionFilter
	if f.From, ok = queryDate(w, r, "from_date"); !ok {
		return
	}
	if f.To, ok = queryDate(w, r, "to_date"); !ok {
		return
	}
	if f.AccountID, ok = queryUUID(w, r, "account_id"); !ok {
		return
	}
	if f.CategoryID, ok = queryUUID(w, r, "category_id"); !ok {
		return
	}
	if f.Limit, ok = queryInt(w, r, "limit", 0); !ok {
		return
	}
	if f.Offset, ok = queryInt(w, r, "offset", 0); !ok {
		return
	}
	f.PaymentMethod = domain.PaymentMethod(query.Get("payment_method"))
	f.Text = query.Get("q")

	transactions, err := h.svc.ListTransactions(r.Context(), userID, f)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		AccountID       uuid.UUID              `json:"account_id"`
		CategoryID      uuid.NullUUID          `json:"category_id"`
		Type            domain.TransactionType `json:"type"`
		PaymentMethod   domain.PaymentMethod   `json:"payment_method"`
		Amount          decimal.Decimal        `json:"amount"`
		TransactionDate civil.Date             `json:"transaction_date"`
		Description     string                 `json:"description"`
		Counterparty    string                 `json:"counterparty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.svc.CreateTransaction(r.Context(), userID, ledger.CreateTransactionRequest{
		AccountID:       req.AccountID,
		CategoryID:      req.CategoryID,
		Type:            req.Type,
		PaymentMethod:   req.PaymentMethod,
		Amount:          req.Amount,
		TransactionDate: req.TransactionDate,
		Description:     req.Description,
		Counterparty:    req.Counterparty,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}
