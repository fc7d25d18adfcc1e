package ledger

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Period identifies a calendar month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// MonthlySummary is the income/expense report of one month.
type MonthlySummary struct {
	Period  Period          `json:"period"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// MonthRange returns the first day of the month and the first day of the
// following month. The end is exclusive.
func MonthRange(year, month int) (start, end civil.Date, err error) {
	if month < 1 || month > 12 {
		return civil.Date{}, civil.Date{}, domain.NewValidationError("month", domain.CodeInvalid, "must be between 1 and 12, got %d", month)
	}
	if year < 1 || year > 9999 {
		return civil.Date{}, civil.Date{}, domain.NewValidationError("year", domain.CodeInvalid, "out of range: %d", year)
	}
	start = civil.Date{Year: year, Month: time.Month(month), Day: 1}
	if month == 12 {
		end = civil.Date{Year: year + 1, Month: time.January, Day: 1}
	} else {
		end = civil.Date{Year: year, Month: time.Month(month + 1), Day: 1}
	}
	return start, end, nil
}

// MonthlySummary totals income booked on bank/cash accounts and expenses
// booked on any account within the month.
func (s *Service) MonthlySummary(ctx context.Context, userID uuid.UUID, year, month int) (*MonthlySummary, error) {
	start, end, err := MonthRange(year, month)
	if err != nil {
		return nil, s.rejected("monthly_summary", userID, err)
	}
	if userID == uuid.Nil {
		return nil, s.rejected("monthly_summary", userID,
			domain.NewValidationError("user_id", domain.CodeRequired, "owner is required"))
	}

	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, s.rejected("monthly_summary", userID, fmt.Errorf("MonthlySummary: listing accounts: %w", err))
	}
	types := make(map[uuid.UUID]domain.AccountType, len(accounts))
	for _, a := range accounts {
		types[a.ID] = a.Type
	}

	q := Query{
		Predicates: []Predicate{
			OwnerIs{UserID: userID},
			DateOnOrAfter{Date: start},
			DateBefore{Date: end},
			TypeIn{Types: []domain.TransactionType{domain.TransactionTypeIncome, domain.TransactionTypeExpense}},
		},
		Order: DefaultOrder,
	}
	txs, err := s.store.QueryTransactions(ctx, q)
	if err != nil {
		return nil, s.rejected("monthly_summary", userID, fmt.Errorf("MonthlySummary: querying transactions: %w", err))
	}

	sum := &MonthlySummary{
		Period:  Period{Year: year, Month: month},
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}
	for _, t := range txs {
		accType, ok := types[t.AccountID]
		if !ok {
			continue
		}
		switch t.Type {
		case domain.TransactionTypeIncome:
			if accType.IsCashLike() {
				sum.Income = sum.Income.Add(t.Amount)
			}
		case domain.TransactionTypeExpense:
			sum.Expense = sum.Expense.Add(t.Amount)
		}
	}
	sum.Balance = sum.Income.Sub(sum.Expense)
	return sum, nil
}
