package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/api"
	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/infra/memory"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	jobs    *inmemory.Store
	user    uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, jobStore)
	t.Cleanup(func() { queue.Close() })

	return &testServer{
		t: t,
		handler: api.NewRouter(api.Deps{
			Ledger:    ledger.NewService(store, zerolog.Nop()),
			Publisher: queue,
			Jobs:      jobStore,
			Log:       zerolog.Nop(),
		}),
		store: store,
		jobs:  jobStore,
		user:  uuid.New(),
	}
}

// do sends a request as s.user and decodes the JSON response into out.
func (s *testServer) do(method, path string, body interface{}, out interface{}) int {
	s.t.Helper()
	return s.doAs(s.user, method, path, body, out)
}

func (s *testServer) doAs(user uuid.UUID, method, path string, body interface{}, out interface{}) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set(middleware.UserIDHeader, user.String())
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decoding %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (s *testServer) createAccount(name, typ, initial string) string {
	s.t.Helper()
	var acc map[string]interface{}
	code := s.do(http.MethodPost, "/api/accounts", map[string]string{
		"name": name, "type": typ, "initial_balance": initial,
	}, &acc)
	if code != http.StatusCreated {
		s.t.Fatalf("create account status = %d, body %v", code, acc)
	}
	return acc["id"].(string)
}

func (s *testServer) createCategory(name, typ string) string {
	s.t.Helper()
	var cat map[string]interface{}
	code := s.do(http.MethodPost, "/api/categories", map[string]string{"name": name, "type": typ}, &cat)
	if code != http.StatusCreated {
		s.t.Fatalf("create category status = %d, body %v", code, cat)
	}
	return cat["id"].(string)
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	if code := s.doAs(uuid.Nil, http.MethodGet, "/health", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	s := newTestServer(t)
	if code := s.doAs(uuid.Nil, http.MethodGet, "/api/accounts", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}

func TestBalanceWorkedExample(t *testing.T) {
	s := newTestServer(t)
	bank := s.createAccount("Checking", "bank", "100")
	salary := s.createCategory("Salary", "income")
	food := s.createCategory("Food", "expense")

	for _, tx := range []map[string]interface{}{
		{"account_id": bank, "category_id": salary, "type": "income", "amount": "50", "transaction_date": "2024-03-01"},
		{"account_id": bank, "category_id": food, "type": "expense", "amount": 30, "transaction_date": "2024-03-02", "payment_method": "card"},
	} {
		if code := s.do(http.MethodPost, "/api/transactions", tx, nil); code != http.StatusCreated {
			t.Fatalf("create transaction status = %d", code)
		}
	}

	var pos map[string]interface{}
	if code := s.do(http.MethodGet, "/api/accounts/"+bank+"/balance", nil, &pos); code != http.StatusOK {
		t.Fatalf("balance status = %d", code)
	}
	if pos["balance"] != "120" {
		t.Errorf("balance = %v, want \"120\"", pos["balance"])
	}
	if _, ok := pos["debt"]; ok {
		t.Error("bank position must not carry a debt key")
	}
}

func TestTransferEndpoint(t *testing.T) {
	s := newTestServer(t)
	from := s.createAccount("Checking", "bank", "1000")
	to := s.createAccount("Wallet", "cash", "0")
	fees := s.createCategory("Bank fees", "expense")

	var result struct {
		GroupID string `json:"group_id"`
		Created []struct {
			Type string `json:"type"`
			Note string `json:"note"`
		} `json:"created"`
	}
	code := s.do(http.MethodPost, "/api/operations/transfer", map[string]interface{}{
		"from_account_id":  from,
		"to_account_id":    to,
		"amount":           "200",
		"fee":              "5",
		"fee_category_id":  fees,
		"transaction_date": "2024-03-10",
	}, &result)
	if code != http.StatusCreated {
		t.Fatalf("transfer status = %d", code)
	}
	if len(result.Created) != 3 || result.GroupID == "" {
		t.Fatalf("result = %+v", result)
	}

	var pos map[string]interface{}
	s.do(http.MethodGet, "/api/accounts/"+from+"/balance", nil, &pos)
	if pos["balance"] != "795" {
		t.Errorf("from balance = %v, want 795", pos["balance"])
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	bank := s.createAccount("Checking", "bank", "0")
	card := s.createAccount("Visa", "credit_card", "0")
	food := s.createCategory("Food", "expense")

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		want     int
		wantCode string
	}{
		{
			name: "same account transfer", method: http.MethodPost, path: "/api/operations/transfer",
			body: map[string]interface{}{"from_account_id": bank, "to_account_id": bank, "amount": "1", "transaction_date": "2024-03-10"},
			want: http.StatusBadRequest, wantCode: "accounts_must_differ",
		},
		{
			name: "fee without category", method: http.MethodPost, path: "/api/operations/transfer",
			body: map[string]interface{}{"from_account_id": bank, "to_account_id": card, "amount": "1", "fee": "1", "transaction_date": "2024-03-10"},
			want: http.StatusBadRequest, wantCode: "fee_category_required",
		},
		{
			name: "transfer type on simple create", method: http.MethodPost, path: "/api/transactions",
			body: map[string]interface{}{"account_id": bank, "type": "transfer_in", "amount": "1", "transaction_date": "2024-03-10"},
			want: http.StatusBadRequest, wantCode: "use_transfer",
		},
		{
			name: "income on credit card", method: http.MethodPost, path: "/api/transactions",
			body: map[string]interface{}{"account_id": card, "type": "income", "amount": "1", "transaction_date": "2024-03-10"},
			want: http.StatusBadRequest, wantCode: "account_type_mismatch",
		},
		{
			name: "zero amount", method: http.MethodPost, path: "/api/transactions",
			body: map[string]interface{}{"account_id": bank, "category_id": food, "type": "expense", "amount": "0", "transaction_date": "2024-03-10"},
			want: http.StatusBadRequest, wantCode: "invalid",
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/api/transactions",
			body: map[string]interface{}{"account_id": "not-a-uuid"},
			want: http.StatusBadRequest, wantCode: "invalid",
		},
		{
			name: "unknown account", method: http.MethodPost, path: "/api/transactions",
			body: map[string]interface{}{"account_id": uuid.NewString(), "type": "expense", "amount": "1", "transaction_date": "2024-03-10"},
			want: http.StatusNotFound,
		},
		{
			name: "unknown category delete", method: http.MethodDelete, path: "/api/categories/" + uuid.NewString(),
			want: http.StatusNotFound,
		},
		{
			name: "bad list filter", method: http.MethodGet, path: "/api/transactions?from_date=03/10/2024",
			want: http.StatusBadRequest, wantCode: "invalid",
		},
		{
			name: "dashboard month out of range", method: http.MethodGet, path: "/api/dashboard/monthly?year=2024&month=13",
			want: http.StatusBadRequest, wantCode: "invalid",
		},
		{
			name: "dashboard month missing", method: http.MethodGet, path: "/api/dashboard/monthly?year=2024",
			want: http.StatusBadRequest, wantCode: "required",
		},
		{
			name: "method not allowed", method: http.MethodPut, path: "/health",
			want: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.store.TransactionCount()
			var body map[string]interface{}
			code := s.do(tt.method, tt.path, tt.body, &body)
			if code != tt.want {
				t.Fatalf("status = %d, want %d (body %v)", code, tt.want, body)
			}
			if tt.wantCode != "" && body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
			if body["error"] == nil {
				t.Errorf("error message missing: %v", body)
			}
			if s.store.TransactionCount() != before {
				t.Error("rejected request wrote rows")
			}
		})
	}
}

func TestAccountsAreOwnerScoped(t *testing.T) {
	s := newTestServer(t)
	bank := s.createAccount("Checking", "bank", "10")
	stranger := uuid.New()

	if code := s.doAs(stranger, http.MethodGet, "/api/accounts/"+bank+"/balance", nil, nil); code != http.StatusNotFound {
		t.Errorf("foreign balance status = %d, want 404", code)
	}
	if code := s.doAs(stranger, http.MethodPatch, "/api/accounts/"+bank, map[string]string{"name": "Mine"}, nil); code != http.StatusNotFound {
		t.Errorf("foreign patch status = %d, want 404", code)
	}

	var list struct {
		Accounts []map[string]interface{} `json:"accounts"`
		Count    int                      `json:"count"`
	}
	s.doAs(stranger, http.MethodGet, "/api/accounts", nil, &list)
	if list.Count != 0 {
		t.Errorf("stranger sees %d accounts", list.Count)
	}
}

func TestPatchAccount(t *testing.T) {
	s := newTestServer(t)
	bank := s.createAccount("Checking", "bank", "10")

	var acc map[string]interface{}
	code := s.do(http.MethodPatch, "/api/accounts/"+bank, map[string]interface{}{"active": false, "initial_balance": "25"}, &acc)
	if code != http.StatusOK {
		t.Fatalf("patch status = %d", code)
	}
	if acc["active"] != false || acc["name"] != "Checking" {
		t.Errorf("patched account = %v", acc)
	}

	var pos map[string]interface{}
	s.do(http.MethodGet, "/api/accounts/"+bank+"/balance", nil, &pos)
	if pos["balance"] != "25" {
		t.Errorf("balance = %v, want 25", pos["balance"])
	}
}

func TestListTransactionsFilters(t *testing.T) {
	s := newTestServer(t)
	bank := s.createAccount("Checking", "bank", "0")
	food := s.createCategory("Food", "expense")

	for _, tx := range []map[string]interface{}{
		{"account_id": bank, "category_id": food, "type": "expense", "amount": "3", "transaction_date": "2024-03-01", "description": "Coffee at Café Luna"},
		{"account_id": bank, "category_id": food, "type": "expense", "amount": "40", "transaction_date": "2024-03-05", "counterparty": "Grocer"},
		{"account_id": bank, "type": "income", "amount": "100", "transaction_date": "2024-04-01"},
	} {
		if code := s.do(http.MethodPost, "/api/transactions", tx, nil); code != http.StatusCreated {
			t.Fatalf("create status = %d", code)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?q=caf%C3%A9", 1},
		{"?q=GROCER", 1},
		{"?from_date=2024-03-02&to_date=2024-03-31", 1},
		{"?category_id=" + food, 2},
		{"?account_id=" + bank + "&limit=2", 2},
		{"?limit=2&offset=2", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var rows []map[string]interface{}
			if code := s.do(http.MethodGet, "/api/transactions"+tt.query, nil, &rows); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if len(rows) != tt.want {
				t.Errorf("got %d rows, want %d", len(rows), tt.want)
			}
		})
	}
}

func TestDeleteCategoryKeepsTransactions(t *testing.T) {
	s := newTestServer(t)
	bank := s.createAccount("Checking", "bank", "0")
	food := s.createCategory("Food", "expense")
	s.do(http.MethodPost, "/api/transactions", map[string]interface{}{
		"account_id": bank, "category_id": food, "type": "expense", "amount": "3", "transaction_date": "2024-03-01",
	}, nil)

	if code := s.do(http.MethodDelete, "/api/categories/"+food, nil, nil); code != http.StatusOK {
		t.Fatalf("delete status = %d", code)
	}

	var rows []map[string]interface{}
	s.do(http.MethodGet, "/api/transactions", nil, &rows)
	if len(rows) != 1 || rows[0]["category_id"] != nil {
		t.Errorf("rows after delete = %v", rows)
	}
}

func TestMonthlyDashboard(t *testing.T) {
	s := newTestServer(t)
	bank := s.createAccount("Checking", "bank", "0")
	for _, tx := range []map[string]interface{}{
		{"account_id": bank, "type": "income", "amount": "1000", "transaction_date": "2023-12-01"},
		{"account_id": bank, "type": "expense", "amount": "200", "transaction_date": "2023-12-31"},
		{"account_id": bank, "type": "expense", "amount": "50", "transaction_date": "2024-01-01"},
	} {
		s.do(http.MethodPost, "/api/transactions", tx, nil)
	}

	var summary struct {
		Period  struct{ Year, Month int } `json:"period"`
		Income  string                    `json:"income"`
		Expense string                    `json:"expense"`
		Balance string                    `json:"balance"`
	}
	if code := s.do(http.MethodGet, "/api/dashboard/monthly?year=2023&month=12", nil, &summary); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if summary.Income != "1000" || summary.Expense != "200" || summary.Balance != "800" {
		t.Errorf("summary = %+v", summary)
	}
}

func TestExportJobsAreCallerScoped(t *testing.T) {
	s := newTestServer(t)

	var enqueued map[string]string
	if code := s.do(http.MethodPost, "/api/exports", map[string]string{"target": "gcs"}, &enqueued); code != http.StatusAccepted {
		t.Fatalf("enqueue status = %d", code)
	}
	jobID := enqueued["job_id"]
	if jobID == "" || enqueued["status"] != string(jobs.JobStatusPending) {
		t.Fatalf("enqueue body = %v", enqueued)
	}

	var job jobs.ExportJob
	if code := s.do(http.MethodGet, "/api/exports/"+jobID, nil, &job); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if job.UserID != s.user.String() || job.Target != jobs.ExportTargetGCS {
		t.Errorf("job = %+v", job)
	}

	if code := s.doAs(uuid.New(), http.MethodGet, "/api/exports/"+jobID, nil, nil); code != http.StatusNotFound {
		t.Errorf("foreign job status = %d, want 404", code)
	}

	var list struct {
		Count int `json:"count"`
	}
	s.doAs(uuid.New(), http.MethodGet, "/api/exports", nil, &list)
	if list.Count != 0 {
		t.Errorf("stranger lists %d jobs", list.Count)
	}

	var bad map[string]interface{}
	if code := s.do(http.MethodPost, "/api/exports", map[string]string{"target": "ftp"}, &bad); code != http.StatusBadRequest {
		t.Errorf("bad target status = %d", code)
	}
}
