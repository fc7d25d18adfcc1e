package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest posts a single ordinary leg.
type CreateTransactionRequest struct {
	AccountID       uuid.UUID
	CategoryID      uuid.NullUUID
	Type            domain.TransactionType
	PaymentMethod   domain.PaymentMethod
	Amount          decimal.Decimal
	TransactionDate civil.Date
	Description     string
	Counterparty    string
}

// TransferRequest moves money between two bank/cash accounts.
type TransferRequest struct {
	FromAccountID   uuid.UUID
	ToAccountID     uuid.UUID
	Amount          decimal.Decimal
	TransactionDate civil.Date
	PaymentMethod   domain.PaymentMethod // defaults to bank_transfer
	Fee             decimal.Decimal
	FeeCategoryID   uuid.NullUUID // required when Fee > 0
	Description     string
}

// CreditCardPaymentRequest pays down a credit card from a bank/cash account.
type CreditCardPaymentRequest struct {
	BankAccountID       uuid.UUID
	CreditCardAccountID uuid.UUID
	Amount              decimal.Decimal
	TransactionDate     civil.Date
	PaymentMethod       domain.PaymentMethod // defaults to sinpe
	PaymentCategoryID   uuid.UUID
	Fee                 decimal.Decimal
	FeeCategoryID       uuid.NullUUID // required when Fee > 0
	Reference           string
	Description         string
}

// Leg describes one row of a posted group.
type Leg struct {
	Type domain.TransactionType `json:"type"`
	Note string                 `json:"note,omitempty"`
}

// PostingResult is the manifest of a compound operation.
type PostingResult struct {
	GroupID      uuid.UUID             `json:"group_id"`
	Created      []Leg                 `json:"created"`
	Transactions []*domain.Transaction `json:"transactions"`
}

const (
	defaultTransferMethod = domain.PaymentMethodBankTransfer
	defaultCardPayMethod  = domain.PaymentMethodSinpe
	feePrefix             = "Fee: "
	cardPaymentText       = "Credit card payment"
)

// CreateTransaction posts one ordinary transaction. Transfers and card
// payments must go through their compound operations.
func (s *Service) CreateTransaction(ctx context.Context, userID uuid.UUID, req CreateTransactionRequest) (*domain.Transaction, error) {
	if err := validateLegInput(req.Type, req.PaymentMethod, req.Amount, req.TransactionDate); err != nil {
		return nil, s.rejected("create_transaction", userID, err)
	}

	var created *domain.Transaction
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		acc, err := ownedAccount(ctx, tx, userID, req.AccountID, "account_id")
		if err != nil {
			return err
		}
		if err := checkDirectType(acc, req.Type); err != nil {
			return err
		}
		if req.CategoryID.Valid {
			if _, err := ownedCategory(ctx, tx, userID, req.CategoryID.UUID, "category_id"); err != nil {
				return err
			}
		}

		row := &domain.Transaction{
			ID:              uuid.New(),
			UserID:          userID,
			AccountID:       acc.ID,
			CategoryID:      req.CategoryID,
			Type:            req.Type,
			PaymentMethod:   req.PaymentMethod,
			Amount:          req.Amount,
			TransactionDate: req.TransactionDate,
			Description:     req.Description,
			Counterparty:    req.Counterparty,
			CreatedAt:       s.timestamp(),
		}
		if err := row.Validate(); err != nil {
			return err
		}
		if err := tx.InsertTransactions(ctx, []*domain.Transaction{row}); err != nil {
			return fmt.Errorf("CreateTransaction: inserting row: %w", err)
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, s.rejected("create_transaction", userID, err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("transaction_id", created.ID.String()).
		Str("type", string(created.Type)).
		Msg("Transaction posted")
	return created, nil
}

// checkDirectType applies the per-account-type rules of single-leg posting.
func checkDirectType(acc *domain.Account, typ domain.TransactionType) error {
	switch acc.Type {
	case domain.AccountTypeBank, domain.AccountTypeCash:
		switch typ {
		case domain.TransactionTypeCreditPayment:
			return domain.NewValidationError("type", domain.CodeAccountTypeMismatch, "credit_payment is only for credit cards")
		case domain.TransactionTypeTransferIn, domain.TransactionTypeTransferOut:
			return domain.NewValidationError("type", domain.CodeUseTransfer, "use the transfer operation for transfers")
		}
		return nil
	case domain.AccountTypeCreditCard:
		switch typ {
		case domain.TransactionTypeExpense, domain.TransactionTypeCreditPayment:
			return nil
		}
		return domain.NewValidationError("type", domain.CodeAccountTypeMismatch, "credit cards only allow expense or credit_payment")
	default:
		return fmt.Errorf("checkDirectType: unknown account type %q", acc.Type)
	}
}

// Transfer posts a transfer_out/transfer_in pair, plus a fee expense on the
// source account when a fee is charged. All legs share one group id.
func (s *Service) Transfer(ctx context.Context, userID uuid.UUID, req TransferRequest) (*PostingResult, error) {
	if err := req.validate(); err != nil {
		return nil, s.rejected("transfer", userID, err)
	}
	method := req.PaymentMethod
	if method == "" {
		method = defaultTransferMethod
	}
	hasFee := req.Fee.IsPositive()

	var result *PostingResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		from, err := ownedAccount(ctx, tx, userID, req.FromAccountID, "from_account_id")
		if err != nil {
			return err
		}
		to, err := ownedAccount(ctx, tx, userID, req.ToAccountID, "to_account_id")
		if err != nil {
			return err
		}
		if err := requireCashLike(from, "from_account_id", "transfers are only allowed between bank/cash accounts"); err != nil {
			return err
		}
		if err := requireCashLike(to, "to_account_id", "transfers are only allowed between bank/cash accounts"); err != nil {
			return err
		}
		var feeCat *domain.Category
		if hasFee {
			if feeCat, err = expenseCategory(ctx, tx, userID, req.FeeCategoryID.UUID, "fee_category_id"); err != nil {
				return err
			}
		}

		g := s.newGroup(userID, req.TransactionDate, method)
		g.add(Leg{Type: domain.TransactionTypeTransferOut}, from.ID, uuid.NullUUID{}, req.Amount, req.Description)
		g.add(Leg{Type: domain.TransactionTypeTransferIn}, to.ID, uuid.NullUUID{}, req.Amount, req.Description)
		if hasFee {
			g.add(Leg{Type: domain.TransactionTypeExpense, Note: "fee"}, from.ID, categoryRef(feeCat), req.Fee,
				feePrefix+orDefault(req.Description, "transfer"))
		}

		if err := g.post(ctx, tx); err != nil {
			return err
		}
		result = g.result()
		return nil
	})
	if err != nil {
		return nil, s.rejected("transfer", userID, err)
	}

	s.logPosted("Transfer posted", userID, result)
	return result, nil
}

func (r TransferRequest) validate() error {
	if err := domain.ValidateAmount("amount", r.Amount); err != nil {
		return err
	}
	if err := validateCommon(r.PaymentMethod, r.TransactionDate, r.Fee); err != nil {
		return err
	}
	if r.FromAccountID == uuid.Nil {
		return domain.NewValidationError("from_account_id", domain.CodeRequired, "from_account_id is required")
	}
	if r.ToAccountID == uuid.Nil {
		return domain.NewValidationError("to_account_id", domain.CodeRequired, "to_account_id is required")
	}
	if r.FromAccountID == r.ToAccountID {
		return domain.NewValidationError("to_account_id", domain.CodeAccountsMustDiffer, "from_account_id and to_account_id must differ")
	}
	if r.Fee.IsPositive() && !r.FeeCategoryID.Valid {
		return domain.NewValidationError("fee_category_id", domain.CodeFeeCategoryRequired, "fee_category_id required when fee > 0")
	}
	return nil
}

// PayCreditCard posts an expense on the paying bank/cash account and a
// credit_payment on the card, plus a fee expense when a fee is charged.
func (s *Service) PayCreditCard(ctx context.Context, userID uuid.UUID, req CreditCardPaymentRequest) (*PostingResult, error) {
	if err := req.validate(); err != nil {
		return nil, s.rejected("credit_card_payment", userID, err)
	}
	method := req.PaymentMethod
	if method == "" {
		method = defaultCardPayMethod
	}
	hasFee := req.Fee.IsPositive()

	var result *PostingResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		bank, err := ownedAccount(ctx, tx, userID, req.BankAccountID, "bank_account_id")
		if err != nil {
			return err
		}
		if err := requireCashLike(bank, "bank_account_id", "bank_account_id must be bank/cash"); err != nil {
			return err
		}
		card, err := ownedAccount(ctx, tx, userID, req.CreditCardAccountID, "credit_card_account_id")
		if err != nil {
			return err
		}
		if err := requireCreditCard(card, "credit_card_account_id"); err != nil {
			return err
		}
		payCat, err := expenseCategory(ctx, tx, userID, req.PaymentCategoryID, "payment_category_id")
		if err != nil {
			return err
		}
		var feeCat *domain.Category
		if hasFee {
			if !req.FeeCategoryID.Valid {
				return domain.NewValidationError("fee_category_id", domain.CodeFeeCategoryRequired, "fee_category_id required when fee > 0")
			}
			if feeCat, err = expenseCategory(ctx, tx, userID, req.FeeCategoryID.UUID, "fee_category_id"); err != nil {
				return err
			}
		}

		bankText := req.Description
		if bankText == "" {
			bankText = cardPaymentText
			if ref := strings.TrimSpace(req.Reference); ref != "" {
				bankText = fmt.Sprintf("%s (%s)", cardPaymentText, ref)
			}
		}

		g := s.newGroup(userID, req.TransactionDate, method)
		g.add(Leg{Type: domain.TransactionTypeExpense, Note: "bank_out"}, bank.ID, categoryRef(payCat), req.Amount, bankText)
		g.add(Leg{Type: domain.TransactionTypeCreditPayment, Note: "card_in"}, card.ID, uuid.NullUUID{}, req.Amount,
			orDefault(req.Description, cardPaymentText))
		if hasFee {
			g.add(Leg{Type: domain.TransactionTypeExpense, Note: "fee"}, bank.ID, categoryRef(feeCat), req.Fee,
				feePrefix+orDefault(req.Description, "card payment"))
		}

		if err := g.post(ctx, tx); err != nil {
			return err
		}
		result = g.result()
		return nil
	})
	if err != nil {
		return nil, s.rejected("credit_card_payment", userID, err)
	}

	s.logPosted("Credit card payment posted", userID, result)
	return result, nil
}

func (r CreditCardPaymentRequest) validate() error {
	if err := domain.ValidateAmount("amount", r.Amount); err != nil {
		return err
	}
	if err := validateCommon(r.PaymentMethod, r.TransactionDate, r.Fee); err != nil {
		return err
	}
	if r.BankAccountID == uuid.Nil {
		return domain.NewValidationError("bank_account_id", domain.CodeRequired, "bank_account_id is required")
	}
	if r.CreditCardAccountID == uuid.Nil {
		return domain.NewValidationError("credit_card_account_id", domain.CodeRequired, "credit_card_account_id is required")
	}
	if r.PaymentCategoryID == uuid.Nil {
		return domain.NewValidationError("payment_category_id", domain.CodeRequired, "payment_category_id is required")
	}
	return nil
}

func validateLegInput(typ domain.TransactionType, method domain.PaymentMethod, amount decimal.Decimal, date civil.Date) error {
	if !typ.Valid() {
		return domain.NewValidationError("type", domain.CodeInvalid, "unknown transaction type %q", typ)
	}
	if err := domain.ValidateAmount("amount", amount); err != nil {
		return err
	}
	return validateCommon(method, date, decimal.Zero)
}

func validateCommon(method domain.PaymentMethod, date civil.Date, fee decimal.Decimal) error {
	if method != "" && !method.Valid() {
		return domain.NewValidationError("payment_method", domain.CodeInvalid, "unknown payment method %q", method)
	}
	if err := domain.ValidateDate("transaction_date", date); err != nil {
		return err
	}
	if fee.IsNegative() {
		return domain.NewValidationError("fee", domain.CodeInvalid, "must not be negative, got %s", fee)
	}
	return nil
}

func requireCashLike(acc *domain.Account, field, msg string) error {
	switch acc.Type {
	case domain.AccountTypeBank, domain.AccountTypeCash:
		return nil
	case domain.AccountTypeCreditCard:
		return domain.NewValidationError(field, domain.CodeAccountTypeMismatch, "%s", msg)
	default:
		return fmt.Errorf("requireCashLike: unknown account type %q", acc.Type)
	}
}

func requireCreditCard(acc *domain.Account, field string) error {
	switch acc.Type {
	case domain.AccountTypeCreditCard:
		return nil
	case domain.AccountTypeBank, domain.AccountTypeCash:
		return domain.NewValidationError(field, domain.CodeAccountTypeMismatch, "%s must be credit_card", field)
	default:
		return fmt.Errorf("requireCreditCard: unknown account type %q", acc.Type)
	}
}

func categoryRef(c *domain.Category) uuid.NullUUID {
	if c == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: c.ID, Valid: true}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// group accumulates the legs of one compound operation before they are
// written together.
type group struct {
	id     uuid.UUID
	userID uuid.UUID
	date   civil.Date
	method domain.PaymentMethod
	at     time.Time
	legs   []Leg
	rows   []*domain.Transaction
}

func (s *Service) newGroup(userID uuid.UUID, date civil.Date, method domain.PaymentMethod) *group {
	return &group{
		id:     uuid.New(),
		userID: userID,
		date:   date,
		method: method,
		at:     s.timestamp(),
	}
}

func (g *group) add(leg Leg, accountID uuid.UUID, categoryID uuid.NullUUID, amount decimal.Decimal, description string) {
	g.legs = append(g.legs, leg)
	g.rows = append(g.rows, &domain.Transaction{
		ID:              uuid.New(),
		UserID:          g.userID,
		AccountID:       accountID,
		CategoryID:      categoryID,
		Type:            leg.Type,
		PaymentMethod:   g.method,
		Amount:          amount,
		TransactionDate: g.date,
		Description:     description,
		GroupID:         uuid.NullUUID{UUID: g.id, Valid: true},
		CreatedAt:       g.at,
	})
}

// post validates every row and writes them in one call.
func (g *group) post(ctx context.Context, tx Tx) error {
	for _, row := range g.rows {
		if err := row.Validate(); err != nil {
			return err
		}
	}
	if err := tx.InsertTransactions(ctx, g.rows); err != nil {
		return fmt.Errorf("posting group %s: %w", g.id, err)
	}
	return nil
}

func (g *group) result() *PostingResult {
	return &PostingResult{
		GroupID:      g.id,
		Created:      g.legs,
		Transactions: g.rows,
	}
}

func (s *Service) logPosted(msg string, userID uuid.UUID, r *PostingResult) {
	s.log.Info().
		Str("user_id", userID.String()).
		Str("group_id", r.GroupID.String()).
		Int("legs", len(r.Created)).
		Msg(msg)
}
