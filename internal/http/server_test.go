package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"famfin/internal/analytics"
	"famfin/internal/core"
	"famfin/internal/ledger"
	"famfin/internal/ledger/memory"
	"famfin/internal/log"
	"famfin/internal/middleware/ratelimit"
	"famfin/internal/middleware/trace"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

var family = core.OwnerScope{Kind: core.Family, ID: "fam-1"}

func clock() time.Time { return testNow }

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	engine := analytics.NewEngine(store, store, analytics.WithClock(clock), analytics.WithLogger(log.Discard()))
	opts = append([]ServerOption{WithServerClock(clock), WithServerLogger(log.Discard())}, opts...)
	return NewServer(":0", engine, store, opts...), store
}

func seed(t *testing.T, s *memory.Store, typ core.MovementType, cents int64, category string, at time.Time) {
	t.Helper()
	if _, err := s.AppendRecord(context.Background(), core.LedgerRecord{
		Owner: family, Type: typ, Amount: core.Money{Cents: cents}, Category: category, OccurredAt: at,
	}); err != nil {
		t.Fatalf("AppendRecord() error = %v", err)
	}
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if rr.Header().Get(trace.HeaderRequestID) == "" {
			t.Errorf("%s missing request id header", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

type downStore struct{ *memory.Store }

func (downStore) Ping(context.Context) error { return errors.New("database is locked") }

func (downStore) Aggregate(context.Context, ledger.Query) ([]ledger.Bucket, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestReadyReportsUnavailableStore(t *testing.T) {
	store := downStore{memory.New()}
	engine := analytics.NewEngine(store, store, analytics.WithClock(clock), analytics.WithLogger(log.Discard()))
	srv := NewServer(":0", engine, store, WithServerLogger(log.Discard()))

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/reports/summary?owner=fam-1&start=2025-03-01&end=2025-03-31", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("summary status = %d, want 503", rr.Code)
	}
	body := decode[errorBody](t, rr)
	if body.Error.Code != "store_unavailable" {
		t.Errorf("error code = %q", body.Error.Code)
	}
	if strings.Contains(body.Error.Message, "connection refused") {
		t.Errorf("store error leaked to client: %q", body.Error.Message)
	}
}

func TestAppendRecordThenSummary(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store, core.Income, 300000, "Salary", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	rr := do(t, srv, http.MethodPost, "/api/records",
		`{"owner":{"kind":"family","id":"fam-1"},"type":"expense","amount":"12.50","category":"Food","occurred_at":"2025-03-31"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /api/records status = %d body = %s", rr.Code, rr.Body)
	}
	if rec := decode[core.LedgerRecord](t, rr); rec.ID == "" {
		t.Error("created record has no id")
	}

	rr = do(t, srv, http.MethodGet, "/api/reports/summary?owner=fam-1&start=2025-03-01&end=2025-03-31", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d body = %s", rr.Code, rr.Body)
	}
	report := decode[analytics.SummaryReport](t, rr)
	if report.Income.Cents != 300000 || report.Expense.Cents != 1250 {
		t.Errorf("summary = income %v expense %v", report.Income, report.Expense)
	}
	if report.Balance.Cents != 298750 {
		t.Errorf("balance = %v, want 2987.50", report.Balance)
	}
}

func TestValidationErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name      string
		method    string
		target    string
		body      string
		wantField string
	}{
		{"missing owner", http.MethodGet, "/api/reports/summary?start=2025-03-01&end=2025-03-31", "", "owner.id"},
		{"bad owner kind", http.MethodGet, "/api/budgets?owner_kind=tribe&owner=x", "", "owner.kind"},
		{"missing start", http.MethodGet, "/api/reports/comparison?owner=fam-1&end=2025-03-31", "", "start"},
		{"malformed date", http.MethodGet, "/api/aggregate?owner=fam-1&start=2025-3-1&end=2025-03-31&group_by=category", "", "start"},
		{"reversed range", http.MethodGet, "/api/reports/summary?owner=fam-1&start=2025-03-31&end=2025-03-01", "", "range"},
		{"unknown group", http.MethodGet, "/api/aggregate?owner=fam-1&start=2025-03-01&end=2025-03-31&group_by=hour", "", "group_by"},
		{"non-numeric limit", http.MethodGet, "/api/reports/detailed?owner=fam-1&start=2025-03-01&end=2025-03-31&limit=ten", "", "limit"},
		{"month out of range", http.MethodGet, "/api/reports/monthly?owner=fam-1&month=13", "", "month"},
		{"unknown trend preset", http.MethodGet, "/api/trends?owner=fam-1&period=decade", "", "period"},
		{"horizon too large", http.MethodGet, "/api/forecast?owner=fam-1&horizon=99", "", "horizon"},
		{"negative amount", http.MethodPost, "/api/records", `{"owner":{"kind":"family","id":"fam-1"},"type":"expense","amount":"-3","occurred_at":"2025-03-01"}`, "amount"},
		{"unknown field", http.MethodPost, "/api/budgets", `{"owner":{"kind":"family","id":"fam-1"},"colour":"red"}`, "body"},
		{"empty body", http.MethodPost, "/api/budgets", "", "body"},
		{"bad period", http.MethodPost, "/api/budgets", `{"owner":{"kind":"family","id":"fam-1"},"category":"Food","limit":100,"period":"daily"}`, "period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", rr.Code, rr.Body)
			}
			body := decode[errorBody](t, rr)
			if body.Error.Code != "validation_error" || body.Error.Field != tt.wantField {
				t.Errorf("error = %+v, want field %q", body.Error, tt.wantField)
			}
		})
	}
}

func TestBudgetEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store, core.Expense, 85000, "Food", time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))

	rr := do(t, srv, http.MethodPost, "/api/budgets",
		`{"owner":{"kind":"family","id":"fam-1"},"category":"Food","limit":1000,"period":"monthly"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rr.Code, rr.Body)
	}
	budget := decode[core.Budget](t, rr)
	if !budget.AlertsEnabled {
		t.Error("alerts should default to enabled")
	}

	rr = do(t, srv, http.MethodPost, "/api/budgets",
		`{"owner":{"kind":"family","id":"fam-1"},"category":"food","limit":50,"period":"monthly"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("duplicate budget status = %d, want 400", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/budgets/evaluations?owner=fam-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("evaluations status = %d body = %s", rr.Code, rr.Body)
	}
	evals := decode[[]analytics.BudgetEvaluation](t, rr)
	if len(evals) != 1 || evals[0].State != analytics.StateNearLimit || evals[0].Percentage != 85.0 {
		t.Errorf("evaluations = %+v", evals)
	}

	rr = do(t, srv, http.MethodGet, "/api/budgets/"+budget.ID+"/evaluation", "")
	if rr.Code != http.StatusOK {
		t.Errorf("evaluation by id status = %d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/budgets/alerts?owner=fam-1", "")
	if alerts := decode[[]analytics.BudgetAlert](t, rr); len(alerts) != 1 {
		t.Errorf("alerts = %+v, want one", alerts)
	}

	rr = do(t, srv, http.MethodGet, "/api/budgets/missing/evaluation", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown budget status = %d, want 404", rr.Code)
	}
	if body := decode[errorBody](t, rr); body.Error.Code != "not_found" {
		t.Errorf("error code = %q", body.Error.Code)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	for m := time.January; m <= time.March; m++ {
		seed(t, store, core.Income, 200000, "Salary", time.Date(2025, m, 1, 9, 0, 0, 0, time.UTC))
		seed(t, store, core.Expense, int64(m)*10000, "Food", time.Date(2025, m, 3, 9, 0, 0, 0, time.UTC))
	}

	targets := []string{
		"/api/aggregate?owner=fam-1&start=2025-01-01&end=2025-03-31&group_by=year-month&type=expense",
		"/api/reports/comparison?owner=fam-1&start=2025-03-01&end=2025-03-31",
		"/api/reports/detailed?owner=fam-1&start=2025-01-01&end=2025-03-31&category=Food&limit=2",
		"/api/reports/monthly?owner=fam-1",
		"/api/reports/yearly?owner=fam-1&year=2025",
		"/api/budgets/performance?owner=fam-1",
		"/api/trends?owner=fam-1&period=3months",
		"/api/forecast?owner=fam-1&horizon=2",
		"/api/insights?owner=fam-1",
		"/api/patterns/weekday?owner=fam-1&days=90",
	}
	for _, target := range targets {
		rr := do(t, srv, http.MethodGet, target, "")
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s status = %d body = %s", target, rr.Code, rr.Body)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("GET %s content type = %q", target, ct)
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/forecast?owner=fam-1&horizon=2", "")
	if f := decode[analytics.Forecast](t, rr); len(f.Forecast) != 2 {
		t.Errorf("forecast points = %d, want 2", len(f.Forecast))
	}

	rr = do(t, srv, http.MethodGet, "/api/reports/monthly?owner=fam-1", "")
	if s := decode[analytics.MonthlySummary](t, rr); s.Label != "2025-03" {
		t.Errorf("monthly default month = %q, want 2025-03", s.Label)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, WithRateLimiter(ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 2})))

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, do(t, srv, http.MethodGet, "/api/budgets?owner=fam-1", "").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// health checks are not throttled
	if rr := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	if rr := do(t, srv, http.MethodDelete, "/api/budgets", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /api/budgets status = %d, want 405", rr.Code)
	}
}
