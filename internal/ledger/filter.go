package ledger

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
)

// Predicate is one conjunct of a transaction query. Stores either compile it
// (SQL) or evaluate Match directly; both must agree.
type Predicate interface {
	Match(t *domain.Transaction) bool
}

// OwnerIs anchors every query to one user.
type OwnerIs struct{ UserID uuid.UUID }

// DateOnOrAfter is an inclusive lower date bound.
type DateOnOrAfter struct{ Date civil.Date }

// DateOnOrBefore is an inclusive upper date bound.
type DateOnOrBefore struct{ Date civil.Date }

// DateBefore is an exclusive upper date bound, used by month ranges.
type DateBefore struct{ Date civil.Date }

type AccountIs struct{ AccountID uuid.UUID }

type CategoryIs struct{ CategoryID uuid.UUID }

type PaymentMethodIs struct{ Method domain.PaymentMethod }

// TypeIn keeps rows whose type is one of Types.
type TypeIn struct{ Types []domain.TransactionType }

// TextContains is a case-insensitive substring match against the description
// or the counterparty.
type TextContains struct{ Text string }

func (p OwnerIs) Match(t *domain.Transaction) bool         { return t.UserID == p.UserID }
func (p DateOnOrAfter) Match(t *domain.Transaction) bool   { return !t.TransactionDate.Before(p.Date) }
func (p DateOnOrBefore) Match(t *domain.Transaction) bool  { return !t.TransactionDate.After(p.Date) }
func (p DateBefore) Match(t *domain.Transaction) bool      { return t.TransactionDate.Before(p.Date) }
func (p AccountIs) Match(t *domain.Transaction) bool       { return t.AccountID == p.AccountID }
func (p PaymentMethodIs) Match(t *domain.Transaction) bool { return t.PaymentMethod == p.Method }

func (p CategoryIs) Match(t *domain.Transaction) bool {
	return t.CategoryID.Valid && t.CategoryID.UUID == p.CategoryID
}

func (p TypeIn) Match(t *domain.Transaction) bool {
	for _, typ := range p.Types {
		if t.Type == typ {
			return true
		}
	}
	return false
}

func (p TextContains) Match(t *domain.Transaction) bool {
	needle := Casefold(p.Text)
	return strings.Contains(Casefold(t.Description), needle) ||
		strings.Contains(Casefold(t.Counterparty), needle)
}

// Casefold is the folding applied to both sides of a text search. The SQL
// store registers the same function so results match in every backend.
func Casefold(s string) string {
	return strings.ToLower(s)
}

// OrderField names a sortable transaction column.
type OrderField string

const (
	OrderByTransactionDate OrderField = "transaction_date"
	OrderByCreatedAt       OrderField = "created_at"
	OrderByID              OrderField = "id"
)

// OrderTerm is one sort key.
type OrderTerm struct {
	Field OrderField
	Desc  bool
}

// DefaultOrder is newest first with creation time breaking same-day ties.
// The id term only makes the order total.
var DefaultOrder = []OrderTerm{
	{Field: OrderByTransactionDate, Desc: true},
	{Field: OrderByCreatedAt, Desc: true},
	{Field: OrderByID, Desc: true},
}

// Query is a conjunction of predicates plus ordering and optional paging.
// A zero Limit means no limit.
type Query struct {
	Predicates []Predicate
	Order      []OrderTerm
	Limit      int
	Offset     int
}

// Match reports whether t satisfies every predicate.
func (q Query) Match(t *domain.Transaction) bool {
	for _, p := range q.Predicates {
		if !p.Match(t) {
			return false
		}
	}
	return true
}

// Less orders a before b according to q.Order.
func (q Query) Less(a, b *domain.Transaction) bool {
	for _, term := range q.Order {
		c := compareField(term.Field, a, b)
		if c == 0 {
			continue
		}
		if term.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func compareField(f OrderField, a, b *domain.Transaction) int {
	switch f {
	case OrderByTransactionDate:
		switch {
		case a.TransactionDate.Before(b.TransactionDate):
			return -1
		case a.TransactionDate.After(b.TransactionDate):
			return 1
		}
		return 0
	case OrderByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case OrderByID:
		return strings.Compare(a.ID.String(), b.ID.String())
	default:
		return 0
	}
}

// TransactionFilter holds the optional listing filters. Zero values mean "no filter".
type TransactionFilter struct {
	From          *civil.Date
	To            *civil.Date
	AccountID     uuid.NullUUID
	CategoryID    uuid.NullUUID
	PaymentMethod domain.PaymentMethod
	Text          string
	Limit         int
	Offset        int
}

// ComposeFilter turns f into an owner-anchored query with the default ordering.
// Present filters are AND-combined.
func ComposeFilter(userID uuid.UUID, f TransactionFilter) (Query, error) {
	if userID == uuid.Nil {
		return Query{}, domain.NewValidationError("user_id", domain.CodeRequired, "owner is required")
	}
	if f.PaymentMethod != "" && !f.PaymentMethod.Valid() {
		return Query{}, domain.NewValidationError("payment_method", domain.CodeInvalid, "unknown payment method %q", f.PaymentMethod)
	}
	if f.Limit < 0 {
		return Query{}, domain.NewValidationError("limit", domain.CodeInvalid, "must not be negative")
	}
	if f.Offset < 0 {
		return Query{}, domain.NewValidationError("offset", domain.CodeInvalid, "must not be negative")
	}

	q := Query{
		Predicates: []Predicate{OwnerIs{UserID: userID}},
		Order:      DefaultOrder,
		Limit:      f.Limit,
		Offset:     f.Offset,
	}
	if f.From != nil {
		q.Predicates = append(q.Predicates, DateOnOrAfter{Date: *f.From})
	}
	if f.To != nil {
		q.Predicates = append(q.Predicates, DateOnOrBefore{Date: *f.To})
	}
	if f.AccountID.Valid {
		q.Predicates = append(q.Predicates, AccountIs{AccountID: f.AccountID.UUID})
	}
	if f.CategoryID.Valid {
		q.Predicates = append(q.Predicates, CategoryIs{CategoryID: f.CategoryID.UUID})
	}
	if f.PaymentMethod != "" {
		q.Predicates = append(q.Predicates, PaymentMethodIs{Method: f.PaymentMethod})
	}
	if f.Text != "" {
		q.Predicates = append(q.Predicates, TextContains{Text: f.Text})
	}
	return q, nil
}
