// Package seed loads a YAML fixture of accounts and categories and creates
// them for one user through the ledger service.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/gcsuploader"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// AccountSeed is one account entry of a fixture.
type AccountSeed struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	// InitialBalance is a decimal string; empty means zero.
	InitialBalance string `yaml:"initial_balance"`
}

// CategorySeed is one category entry of a fixture.
type CategorySeed struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Fixture is the whole seed file.
type Fixture struct {
	Accounts   []AccountSeed  `yaml:"accounts"`
	Categories []CategorySeed `yaml:"categories"`
}

// Target is the part of the ledger service seeding writes through.
type Target interface {
	CreateAccount(ctx context.Context, userID uuid.UUID, req ledger.CreateAccountRequest) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error)
	CreateCategory(ctx context.Context, userID uuid.UUID, name string, typ domain.CategoryType) (*domain.Category, error)
	ListCategories(ctx context.Context, userID uuid.UUID, typ domain.CategoryType) ([]*domain.Category, error)
}

// Fetcher downloads a gs:// object.
type Fetcher func(ctx context.Context, gcsURI string) ([]byte, error)

// Result counts what Apply did.
type Result struct {
	AccountsCreated   int
	AccountsSkipped   int
	CategoriesCreated int
	CategoriesSkipped int
}

// Load reads a fixture from a local path or a gs:// URI.
func Load(ctx context.Context, src string, fetch Fetcher) (*Fixture, error) {
	var data []byte
	var err error
	if gcsuploader.IsGCSURI(src) {
		if fetch == nil {
			fetch = gcsuploader.FetchFromGCS
		}
		data, err = fetch(ctx, src)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", src, err)
	}
	return Parse(data)
}

// Parse decodes and checks a fixture. Enumerations and amounts are validated
// up front so a bad file creates nothing.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, a := range f.Accounts {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("accounts[%d]: name is required", i)
		}
		if _, err := domain.ParseAccountType(a.Type); err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if _, err := a.balance(); err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
	}
	for i, c := range f.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("categories[%d]: name is required", i)
		}
		if _, err := domain.ParseCategoryType(c.Type); err != nil {
			return nil, fmt.Errorf("categories[%d]: %w", i, err)
		}
	}
	return &f, nil
}

func (a AccountSeed) balance() (decimal.Decimal, error) {
	if a.InitialBalance == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(a.InitialBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid initial_balance %q: %w", a.InitialBalance, err)
	}
	return d, nil
}

// Apply creates the fixture's entries for userID. Entries whose name and type
// already exist are skipped, so re-running a seed is harmless.
func Apply(ctx context.Context, target Target, userID uuid.UUID, f *Fixture, log zerolog.Logger) (Result, error) {
	var res Result

	accounts, err := target.ListAccounts(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("listing accounts: %w", err)
	}
	haveAccount := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		haveAccount[seedKey(a.Name, string(a.Type))] = true
	}

	for _, a := range f.Accounts {
		key := seedKey(a.Name, a.Type)
		if haveAccount[key] {
			res.AccountsSkipped++
			continue
		}
		balance, err := a.balance()
		if err != nil {
			return res, err
		}
		acc, err := target.CreateAccount(ctx, userID, ledger.CreateAccountRequest{
			Name:           a.Name,
			Type:           domain.AccountType(a.Type),
			InitialBalance: balance,
		})
		if err != nil {
			return res, fmt.Errorf("creating account %q: %w", a.Name, err)
		}
		haveAccount[key] = true
		res.AccountsCreated++
		log.Debug().Str("account_id", acc.ID.String()).Str("name", acc.Name).Msg("Seeded account")
	}

	categories, err := target.ListCategories(ctx, userID, "")
	if err != nil {
		return res, fmt.Errorf("listing categories: %w", err)
	}
	haveCategory := make(map[string]bool, len(categories))
	for _, c := range categories {
		haveCategory[seedKey(c.Name, string(c.Type))] = true
	}

	for _, c := range f.Categories {
		key := seedKey(c.Name, c.Type)
		if haveCategory[key] {
			res.CategoriesSkipped++
			continue
		}
		cat, err := target.CreateCategory(ctx, userID, c.Name, domain.CategoryType(c.Type))
		if err != nil {
			return res, fmt.Errorf("creating category %q: %w", c.Name, err)
		}
		haveCategory[key] = true
		res.CategoriesCreated++
		log.Debug().Str("category_id", cat.ID.String()).Str("name", cat.Name).Msg("Seeded category")
	}

	log.Info().
		Str("user_id", userID.String()).
		Int("accounts_created", res.AccountsCreated).
		Int("accounts_skipped", res.AccountsSkipped).
		Int("categories_created", res.CategoriesCreated).
		Int("categories_skipped", res.CategoriesSkipped).
		Msg("Seed applied")
	return res, nil
}

func seedKey(name, typ string) string {
	return ledger.Casefold(strings.TrimSpace(name)) + "\x00" + typ
}
