package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/memory"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const fixtureYAML = `
accounts:
  - name: Checking
    type: bank
    initial_balance: "1500.50"
  - name: Wallet
    type: cash
  - name: Visa
    type: credit_card
    initial_balance: "-20"
categories:
  - name: Salary
    type: income
  - name: Groceries
    type: expense
`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "valid", yaml: fixtureYAML},
		{name: "empty", yaml: ""},
		{name: "bad account type", yaml: "accounts:\n  - name: X\n    type: savings\n", wantErr: "accounts[0]"},
		{name: "missing name", yaml: "categories:\n  - type: income\n", wantErr: "name is required"},
		{name: "bad amount", yaml: "accounts:\n  - name: X\n    type: bank\n    initial_balance: lots\n", wantErr: "initial_balance"},
		{name: "bad category type", yaml: "categories:\n  - name: X\n    type: transfer\n", wantErr: "categories[0]"},
		{name: "not yaml", yaml: "accounts: [", wantErr: "parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Parse() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(fixtureYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(ctx, path, nil)
	if err != nil {
		t.Fatalf("Load(local) error = %v", err)
	}
	if len(f.Accounts) != 3 || len(f.Categories) != 2 {
		t.Errorf("Load(local) = %d accounts, %d categories", len(f.Accounts), len(f.Categories))
	}

	var fetched string
	fetch := func(ctx context.Context, uri string) ([]byte, error) {
		fetched = uri
		return []byte(fixtureYAML), nil
	}
	if _, err := Load(ctx, "gs://seeds/default.yaml", fetch); err != nil {
		t.Fatalf("Load(gcs) error = %v", err)
	}
	if fetched != "gs://seeds/default.yaml" {
		t.Errorf("fetched %q", fetched)
	}

	boom := errors.New("boom")
	failing := func(ctx context.Context, uri string) ([]byte, error) { return nil, boom }
	if _, err := Load(ctx, "gs://seeds/x.yaml", failing); !errors.Is(err, boom) {
		t.Errorf("Load(gcs failing) error = %v", err)
	}
}

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(memory.NewStore(), zerolog.Nop())
	user := uuid.New()

	f, err := Parse([]byte(fixtureYAML))
	if err != nil {
		t.Fatal(err)
	}

	res, err := Apply(ctx, svc, user, f, zerolog.Nop())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.AccountsCreated != 3 || res.CategoriesCreated != 2 {
		t.Errorf("first Apply() = %+v", res)
	}

	res, err = Apply(ctx, svc, user, f, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	want := Result{AccountsSkipped: 3, CategoriesSkipped: 2}
	if res != want {
		t.Errorf("second Apply() = %+v, want %+v", res, want)
	}

	accounts, _ := svc.ListAccounts(ctx, user)
	if len(accounts) != 3 {
		t.Fatalf("got %d accounts", len(accounts))
	}
	for _, a := range accounts {
		if a.Name == "Checking" && a.InitialBalance.String() != "1500.5" {
			t.Errorf("Checking initial balance = %s", a.InitialBalance)
		}
		if a.Name == "Visa" && a.Type != domain.AccountTypeCreditCard {
			t.Errorf("Visa type = %s", a.Type)
		}
	}
}
