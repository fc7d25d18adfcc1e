// Package handlers adapts HTTP requests to ledger and export operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LedgerService is the part of ledger.Service the API calls.
type LedgerService interface {
	CreateAccount(ctx context.Context, userID uuid.UUID, req ledger.CreateAccountRequest) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error)
	PatchAccount(ctx context.Context, userID, accountID uuid.UUID, patch domain.AccountPatch) (*domain.Account, error)
	AccountBalance(ctx context.Context, userID, accountID uuid.UUID) (ledger.Position, error)

	CreateCategory(ctx context.Context, userID uuid.UUID, name string, typ domain.CategoryType) (*domain.Category, error)
	ListCategories(ctx context.Context, userID uuid.UUID, typ domain.CategoryType) ([]*domain.Category, error)
	DeleteCategory(ctx context.Context, userID, categoryID uuid.UUID) error

	CreateTransaction(ctx context.Context, userID uuid.UUID, req ledger.CreateTransactionRequest) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, f ledger.TransactionFilter) ([]*domain.Transaction, error)
	Transfer(ctx context.Context, userID uuid.UUID, req ledger.TransferRequest) (*ledger.PostingResult, error)
	PayCreditCard(ctx context.Context, userID uuid.UUID, req ledger.CreditCardPaymentRequest) (*ledger.PostingResult, error)

	MonthlySummary(ctx context.Context, userID uuid.UUID, year, month int) (*ledger.MonthlySummary, error)
}

var _ LedgerService = (*ledger.Service)(nil)

// validationBody is the 400 response shape.
type validationBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Code  string `json:"code"`
}

// writeServiceError maps ledger errors to status codes. Anything that is not a
// caller mistake is logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	var verr *domain.ValidationError
	var nferr *domain.NotFoundError
	switch {
	case errors.As(err, &verr):
		middleware.WriteJSON(w, http.StatusBadRequest, validationBody{
			Error: verr.Message,
			Field: verr.Field,
			Code:  string(verr.Code),
		})
	case errors.As(err, &nferr):
		middleware.WriteError(w, http.StatusNotFound, nferr.Error())
	default:
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}

// writeInvalid reports a malformed request field.
func writeInvalid(w http.ResponseWriter, field, message string) {
	middleware.WriteJSON(w, http.StatusBadRequest, validationBody{
		Error: message,
		Field: field,
		Code:  string(domain.CodeInvalid),
	})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, validationBody{
			Error: "Invalid request body: " + err.Error(),
			Code:  string(domain.CodeInvalid),
		})
		return false
	}
	return true
}

// caller returns the authenticated user id set by middleware.Identity.
func caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing user identity")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses the {id} URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, entity+" not found")
		return uuid.Nil, false
	}
	return id, true
}

func queryUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.NullUUID, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return uuid.NullUUID{}, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		writeInvalid(w, name, "must be a UUID")
		return uuid.NullUUID{}, false
	}
	return uuid.NullUUID{UUID: id, Valid: true}, true
}

func queryDate(w http.ResponseWriter, r *http.Request, name string) (*civil.Date, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		writeInvalid(w, name, "must be a YYYY-MM-DD date")
		return nil, false
	}
	return &d, true
}

// queryInt parses an optional integer parameter, returning def when absent.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		writeInvalid(w, name, "must be an integer")
		return 0, false
	}
	return n, true
}
