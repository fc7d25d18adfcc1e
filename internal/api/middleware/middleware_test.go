package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/google/uuid"
)

func TestIdentity(t *testing.T) {
	user := uuid.New()
	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid", user.String(), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not a uuid", "alice", http.StatusUnauthorized},
		{"nil uuid", uuid.Nil.String(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen uuid.UUID
			h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
			if tt.header != "" {
				req.Header.Set(UserIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && seen != user {
				t.Errorf("UserIDFromContext = %s, want %s", seen, user)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("Expected generated uuid request id, got %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("Expected request id echoed in response header")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Errorf("Expected incoming request id to be kept, got %q", seen)
	}
}

func TestRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	h := Recovery(logger.NewWithWriter(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "Panic recovered") {
		t.Errorf("Expected panic to be logged, got %s", buf.String())
	}
}

func TestLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	h := RequestID(Logger(logger.NewWithWriter(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.FromContext(r.Context())
		reqLog.Info().Msg("inside handler")
		w.WriteHeader(http.StatusCreated)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/accounts", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var access map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &access); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if access["status"] != float64(http.StatusCreated) || access["method"] != http.MethodPost {
		t.Errorf("Unexpected access log %v", access)
	}
	if access["request_id"] == "" || !strings.Contains(lines[0], "request_id") {
		t.Error("Expected request id on both log lines")
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/accounts", nil))

	if rec.Code != http.StatusNoContent || called {
		t.Errorf("Expected preflight short-circuit, got %d (called=%v)", rec.Code, called)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), UserIDHeader) {
		t.Error("Expected X-User-ID in allowed headers")
	}
}
