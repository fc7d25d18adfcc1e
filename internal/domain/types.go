package domain

// AccountType is the closed set of account kinds.
type AccountType string

const (
	AccountTypeBank       AccountType = "bank"
	AccountTypeCash       AccountType = "cash"
	AccountTypeCreditCard AccountType = "credit_card"
)

// AccountTypes lists every AccountType in declaration order.
var AccountTypes = []AccountType{AccountTypeBank, AccountTypeCash, AccountTypeCreditCard}

// Valid reports whether t is one of the declared account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeBank, AccountTypeCash, AccountTypeCreditCard:
		return true
	default:
		return false
	}
}

// IsCashLike reports whether the account holds spendable money (bank or cash)
// as opposed to accumulating debt.
func (t AccountType) IsCashLike() bool {
	return t == AccountTypeBank || t == AccountTypeCash
}

// ParseAccountType parses s, rejecting anything outside the enumeration.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if !t.Valid() {
		return "", NewValidationError("type", CodeInvalid, "unknown account type %q", s)
	}
	return t, nil
}

// CategoryType is the closed set of category kinds.
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

func (t CategoryType) Valid() bool {
	switch t {
	case CategoryTypeIncome, CategoryTypeExpense:
		return true
	default:
		return false
	}
}

// ParseCategoryType parses s, rejecting anything outside the enumeration.
func ParseCategoryType(s string) (CategoryType, error) {
	t := CategoryType(s)
	if !t.Valid() {
		return "", NewValidationError("type", CodeInvalid, "unknown category type %q", s)
	}
	return t, nil
}

// TransactionType encodes the direction of a transaction. Amounts are always
// positive; the type alone decides whether money enters or leaves an account.
type TransactionType string

const (
	TransactionTypeIncome        TransactionType = "income"
	TransactionTypeExpense       TransactionType = "expense"
	TransactionTypeTransferIn    TransactionType = "transfer_in"
	TransactionTypeTransferOut   TransactionType = "transfer_out"
	TransactionTypeCreditPayment TransactionType = "credit_payment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransferIn,
		TransactionTypeTransferOut, TransactionTypeCreditPayment:
		return true
	default:
		return false
	}
}

// ParseTransactionType parses s, rejecting anything outside the enumeration.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.Valid() {
		return "", NewValidationError("type", CodeInvalid, "unknown transaction type %q", s)
	}
	return t, nil
}

// PaymentMethod is how money moved. The zero value means "not recorded".
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodSinpe        PaymentMethod = "sinpe"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodSinpe, PaymentMethodBankTransfer:
		return true
	default:
		return false
	}
}

// ParsePaymentMethod parses s. An empty string yields the zero value.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	if s == "" {
		return "", nil
	}
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", NewValidationError("payment_method", CodeInvalid, "unknown payment method %q", s)
	}
	return m, nil
}
