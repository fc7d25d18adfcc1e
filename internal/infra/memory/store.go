// Package memory is an in-process ledger.Store. It is used by tests and by
// the CLI when no database path is configured. Data is lost on exit.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/google/uuid"
)

// ErrInjected is returned by writes after FailInsertsAfter has been armed.
var ErrInjected = errors.New("memory: injected write failure")

type state struct {
	accounts     map[uuid.UUID]domain.Account
	categories   map[uuid.UUID]domain.Category
	transactions []domain.Transaction
}

func (s *state) clone() *state {
	c := &state{
		accounts:     make(map[uuid.UUID]domain.Account, len(s.accounts)),
		categories:   make(map[uuid.UUID]domain.Category, len(s.categories)),
		transactions: make([]domain.Transaction, len(s.transactions)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	copy(c.transactions, s.transactions)
	return c
}

// Store keeps the ledger in maps guarded by a mutex. A unit of work runs on a
// private copy of the state that replaces the live state only on commit.
type Store struct {
	mu      sync.RWMutex
	writeMu sync.Mutex
	data    *state

	failAfter int // -1 disables failure injection
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data: &state{
			accounts:   make(map[uuid.UUID]domain.Account),
			categories: make(map[uuid.UUID]domain.Category),
		},
		failAfter: -1,
	}
}

// FailInsertsAfter makes the store reject transaction inserts once n more rows
// have been written inside a unit of work. Tests use it to exercise rollback.
func (s *Store) FailInsertsAfter(n int) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.failAfter = n
}

// TransactionCount returns the number of committed transaction rows.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.transactions)
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return view{s.snapshot()}.GetAccount(ctx, id)
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return view{s.snapshot()}.GetCategory(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	return view{s.snapshot()}.ListAccounts(ctx, userID)
}

func (s *Store) ListCategories(ctx context.Context, userID uuid.UUID, typ domain.CategoryType) ([]*domain.Category, error) {
	return view{s.snapshot()}.ListCategories(ctx, userID, typ)
}

func (s *Store) QueryTransactions(ctx context.Context, q ledger.Query) ([]*domain.Transaction, error) {
	return view{s.snapshot()}.QueryTransactions(ctx, q)
}

// RunInTx serializes writers. fn sees its own writes; nothing is visible to
// other callers until fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t := &tx{view: view{s.snapshot().clone()}, failAfter: s.failAfter}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if t.failAfter >= 0 {
		s.failAfter = t.failAfter
	}

	s.mu.Lock()
	s.data = t.data
	s.mu.Unlock()
	return nil
}

// view answers reads against one immutable or privately owned state.
type view struct {
	data *state
}

func (v view) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, ok := v.data.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (v view) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := v.data.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (v view) ListAccounts(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	var out []*domain.Account
	for _, a := range v.data.accounts {
		if a.UserID == userID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (v view) ListCategories(ctx context.Context, userID uuid.UUID, typ domain.CategoryType) ([]*domain.Category, error) {
	var out []*domain.Category
	for _, c := range v.data.categories {
		if c.UserID != userID || (typ != "" && c.Type != typ) {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (v view) QueryTransactions(ctx context.Context, q ledger.Query) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for i := range v.data.transactions {
		t := v.data.transactions[i]
		if q.Match(&t) {
			out = append(out, &t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return q.Less(out[i], out[j]) })

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []*domain.Transaction{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

type tx struct {
	view
	failAfter int
}

func (t *tx) InsertAccount(ctx context.Context, a *domain.Account) error {
	if _, exists := t.data.accounts[a.ID]; exists {
		return errors.New("memory: duplicate account id")
	}
	t.data.accounts[a.ID] = *a
	return nil
}

func (t *tx) UpdateAccount(ctx context.Context, a *domain.Account) error {
	if _, exists := t.data.accounts[a.ID]; !exists {
		return errors.New("memory: account does not exist")
	}
	t.data.accounts[a.ID] = *a
	return nil
}

func (t *tx) InsertCategory(ctx context.Context, c *domain.Category) error {
	if _, exists := t.data.categories[c.ID]; exists {
		return errors.New("memory: duplicate category id")
	}
	t.data.categories[c.ID] = *c
	return nil
}

func (t *tx) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	delete(t.data.categories, id)
	return nil
}

func (t *tx) ClearCategory(ctx context.Context, userID, categoryID uuid.UUID) (int64, error) {
	var n int64
	for i := range t.data.transactions {
		row := &t.data.transactions[i]
		if row.UserID == userID && row.CategoryID.Valid && row.CategoryID.UUID == categoryID {
			row.CategoryID = uuid.NullUUID{}
			n++
		}
	}
	return n, nil
}

// InsertTransactions appends rows one by one, so an injected failure leaves a
// partially written private state that the caller must discard.
func (t *tx) InsertTransactions(ctx context.Context, rows []*domain.Transaction) error {
	for _, r := range rows {
		if t.failAfter == 0 {
			return ErrInjected
		}
		if t.failAfter > 0 {
			t.failAfter--
		}
		if _, ok := t.data.accounts[r.AccountID]; !ok {
			return errors.New("memory: transaction references unknown account")
		}
		t.data.transactions = append(t.data.transactions, *r)
	}
	return nil
}

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*tx)(nil)
)
