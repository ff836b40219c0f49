package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"finmate/internal/auth"
	"finmate/internal/core"
	"finmate/internal/log"
	"finmate/internal/services"
	"finmate/internal/storage/memory"

	"github.com/shopspring/decimal"
)

var february = time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, nil,
		services.WithLogger(log.Discard()),
		services.WithClock(func() time.Time { return february }))
	s := NewServer(":0", ledger, auth.Static{Owner: "u1"}, Options{Logger: log.Discard()})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, store
}

func seedLedger(t *testing.T, store *memory.Store) {
	t.Helper()
	s := core.NewSnapshot("u1")
	s.Assets = []core.Entry{
		{ID: "a1", OwnerID: "u1", Name: "Cash", Amount: decimal.NewFromInt(100), Category: core.CategoryCash, Date: core.NewDate(2025, 1, 1)},
		{ID: "a2", OwnerID: "u1", Name: "Car", Amount: decimal.NewFromInt(200), Category: core.CategoryVehicle, Date: core.NewDate(2025, 1, 1)},
	}
	s.Liabilities = []core.Entry{
		{ID: "l1", OwnerID: "u1", Name: "Card", Amount: decimal.NewFromInt(50), Category: core.CategoryCreditCard, Date: core.NewDate(2025, 1, 1)},
	}
	s.Income = []core.Entry{
		{ID: "i1", OwnerID: "u1", Name: "Salary", Amount: decimal.NewFromInt(3000), Category: core.CategoryIncome, Date: core.NewDate(2025, 1, 1), Recurring: true},
	}
	s.Expenses = []core.Entry{
		{ID: "e1", OwnerID: "u1", Name: "Rent", Amount: decimal.NewFromInt(1000), Category: core.CategoryExpense, Subcategory: "Housing", Date: core.NewDate(2025, 1, 1), Recurring: true},
		{ID: "e2", OwnerID: "u1", Name: "Food", Amount: decimal.NewFromInt(90), Category: core.CategoryExpense, Subcategory: "Groceries", Date: core.NewDate(2025, 2, 3)},
	}
	if _, err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rec.Header().Get(log.RequestIDHeader) == "" {
		t.Error("request id missing")
	}
}

func TestSummary(t *testing.T) {
	s, store := newTestServer(t)
	seedLedger(t, store)

	rec := do(t, s, http.MethodGet, "/api/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	got := decode[summaryResponse](t, rec)
	if !got.Totals.NetWorth.Equal(decimal.NewFromInt(250)) {
		t.Errorf("net worth = %s, want 250", got.Totals.NetWorth)
	}
	if got.Period != "2025-02" || len(got.Trend) != trendMonths {
		t.Errorf("period=%s trend=%d", got.Period, len(got.Trend))
	}
	if !got.Cashflow.Expenses.Equal(decimal.NewFromInt(90)) {
		t.Errorf("february expenses = %s, want 90", got.Cashflow.Expenses)
	}
	if !got.Sync.Synced {
		t.Errorf("expected synced status, got %+v", got.Sync)
	}
}

func TestCashflow(t *testing.T) {
	s, store := newTestServer(t)
	seedLedger(t, store)

	tests := []struct {
		target  string
		status  int
		savings int64
	}{
		{"/api/cashflow", http.StatusOK, -90},
		{"/api/cashflow?offset=-1", http.StatusOK, 2000},
		{"/api/cashflow?offset=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			flow := decode[core.PeriodFlow](t, rec)
			if !flow.Savings.Equal(decimal.NewFromInt(tt.savings)) {
				t.Errorf("savings = %s, want %d", flow.Savings, tt.savings)
			}
		})
	}
}

func TestBreakdown(t *testing.T) {
	s, store := newTestServer(t)
	seedLedger(t, store)

	rec := do(t, s, http.MethodGet, "/api/breakdown?bucket=expenses&by=subcategory&period=2025-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	got := decode[struct {
		Groups []core.CategoryAmount `json:"groups"`
	}](t, rec)
	if len(got.Groups) != 1 || got.Groups[0].Name != "Housing" {
		t.Fatalf("unexpected groups %+v", got.Groups)
	}

	rec = do(t, s, http.MethodGet, "/api/breakdown?bucket=assets", "")
	got = decode[struct {
		Groups []core.CategoryAmount `json:"groups"`
	}](t, rec)
	if len(got.Groups) != 2 || got.Groups[0].Name != "vehicle" {
		t.Fatalf("unexpected asset groups %+v", got.Groups)
	}

	for _, bad := range []string{"?bucket=income", "?by=tag", "?period=2025-13", "?bucket=x"} {
		if rec := do(t, s, http.MethodGet, "/api/breakdown"+bad, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestCreateAndListEntries(t *testing.T) {
	s, store := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"valid", `{"name":"Lunch","amount":"12,50","category":"expense","date":"2025-02-03"}`, http.StatusCreated, ""},
		{"numeric amount defaults date", `{"name":"Bonus","amount":500,"category":"income"}`, http.StatusCreated, ""},
		{"negative amount", `{"name":"Bad","amount":"-1","category":"expense"}`, http.StatusBadRequest, "amount"},
		{"unknown category", `{"name":"Bad","amount":"1","category":"crypto"}`, http.StatusBadRequest, "category"},
		{"invalid date", `{"name":"Bad","amount":"1","category":"expense","date":"2025-02-30"}`, http.StatusBadRequest, "date"},
		{"empty name", `{"name":"  ","amount":"1","category":"expense"}`, http.StatusBadRequest, "name"},
		{"unknown field", `{"name":"X","amount":"1","category":"expense","tag":"x"}`, http.StatusBadRequest, ""},
		{"empty body", ``, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/entries", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.status, rec.Body)
			}
			if tt.field != "" {
				if got := decode[errorBody](t, rec); got.Field != tt.field {
					t.Errorf("field = %q, want %q", got.Field, tt.field)
				}
			}
		})
	}

	stored, _ := store.Load(context.Background(), "u1")
	if len(stored.Expenses) != 1 || len(stored.Income) != 1 {
		t.Fatalf("stored expenses=%d income=%d", len(stored.Expenses), len(stored.Income))
	}
	if stored.Income[0].Date.String() != "2025-02-14" {
		t.Errorf("default date = %s, want 2025-02-14", stored.Income[0].Date)
	}

	rec := do(t, s, http.MethodGet, "/api/entries?bucket=expenses&period=2025-02", "")
	list := decode[entriesResponse](t, rec)
	if len(list.Entries) != 1 || !list.Entries[0].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected entries %+v", list.Entries)
	}
	rec = do(t, s, http.MethodGet, "/api/entries?bucket=liabilities", "")
	if list := decode[entriesResponse](t, rec); list.Entries == nil || len(list.Entries) != 0 {
		t.Fatalf("expected an empty list, got %+v", list.Entries)
	}
}

func TestDeleteEntry(t *testing.T) {
	s, store := newTestServer(t)
	seedLedger(t, store)

	if rec := do(t, s, http.MethodDelete, "/api/entries/e2", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if rec := do(t, s, http.MethodDelete, "/api/entries/e2", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
	stored, _ := store.Load(context.Background(), "u1")
	if len(stored.Expenses) != 1 {
		t.Fatalf("stored expenses = %d, want 1", len(stored.Expenses))
	}
}

func TestDeleteRolledOverEntryWithSlashInName(t *testing.T) {
	s, store := newTestServer(t)
	snap := core.NewSnapshot("u1")
	snap.Expenses = []core.Entry{
		{ID: "e1", OwnerID: "u1", Name: "Rent/Utilities", Amount: decimal.NewFromInt(700), Category: core.CategoryExpense, Date: core.NewDate(2025, 1, 1), Recurring: true},
	}
	if _, err := store.Save(context.Background(), snap); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got := decode[rolloverResponse](t, do(t, s, http.MethodPost, "/api/rollover", ""))
	if len(got.Created) != 1 || !strings.Contains(got.Created[0].ID, "/") {
		t.Fatalf("expected one rolled-over id containing a slash, got %+v", got.Created)
	}
	id := got.Created[0].ID

	rec := do(t, s, http.MethodDelete, "/api/entries/"+url.PathEscape(id), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if deleted := decode[map[string]any](t, rec)["deleted"]; deleted != id {
		t.Errorf("deleted = %v, want %q", deleted, id)
	}
	stored, _ := store.Load(context.Background(), "u1")
	if len(stored.Expenses) != 1 || stored.Expenses[0].ID != "e1" {
		t.Fatalf("unexpected stored expenses %+v", stored.Expenses)
	}
}

func TestObligationEndpoints(t *testing.T) {
	s, store := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/obligations", `{"id":"net/tv","name":"Internet","amount":"29,90","dueDate":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	created := decode[obligationResponse](t, rec)
	if created.Obligation.OwnerID != "u1" || !created.Obligation.Amount.Equal(decimal.RequireFromString("29.90")) || !created.Sync.Synced {
		t.Fatalf("unexpected obligation %+v", created)
	}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"duplicate", http.MethodPost, "/api/obligations", `{"id":"net/tv","name":"Internet","amount":"10","dueDate":5}`, http.StatusBadRequest},
		{"bad due day", http.MethodPost, "/api/obligations", `{"name":"Gym","amount":"10","dueDate":40}`, http.StatusBadRequest},
		{"paid without flag", http.MethodPatch, "/api/obligations/net%2Ftv", `{}`, http.StatusBadRequest},
		{"paid unknown", http.MethodPatch, "/api/obligations/nope", `{"isPaid":true}`, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/api/obligations/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, tt.method, tt.target, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d body=%s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	rec = do(t, s, http.MethodPatch, "/api/obligations/net%2Ftv", `{"isPaid":true}`)
	if rec.Code != http.StatusOK || !decode[obligationResponse](t, rec).Obligation.IsPaid {
		t.Fatalf("mark paid status = %d body=%s", rec.Code, rec.Body)
	}
	stored, _ := store.Load(context.Background(), "u1")
	if len(stored.Obligations) != 1 || !stored.Obligations[0].IsPaid {
		t.Fatalf("stored obligations %+v", stored.Obligations)
	}

	if rec := do(t, s, http.MethodDelete, "/api/obligations/net%2Ftv", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d body=%s", rec.Code, rec.Body)
	}
	stored, _ = store.Load(context.Background(), "u1")
	if len(stored.Obligations) != 0 {
		t.Fatalf("obligation not deleted: %+v", stored.Obligations)
	}
}

func TestForecastAndCurrencyEndpoints(t *testing.T) {
	s, store := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/forecast", `{"initial":500,"monthly":50,"rate":4,"years":15}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("forecast status = %d body=%s", rec.Code, rec.Body)
	}
	want := core.ForecastConfig{Initial: 500, MonthlyContribution: 50, AnnualRatePercent: 4, Years: 15}
	def := decode[projectionResponse](t, do(t, s, http.MethodGet, "/api/projection", ""))
	if def.Forecast != want || len(def.Years) != 16 {
		t.Fatalf("projection uses %+v, want %+v", def.Forecast, want)
	}

	rec = do(t, s, http.MethodPut, "/api/currency", `{"currency":"gbp"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("currency status = %d body=%s", rec.Code, rec.Body)
	}
	stored, _ := store.Load(context.Background(), "u1")
	if stored.Currency != "GBP" || stored.Forecast != want {
		t.Fatalf("stored currency=%q forecast=%+v", stored.Currency, stored.Forecast)
	}

	tests := map[string]struct {
		target, body string
	}{
		"negative years":   {"/api/forecast", `{"years":-1}`},
		"empty forecast":   {"/api/forecast", `{}`},
		"unknown currency": {"/api/currency", `{"currency":"ZZZ"}`},
		"unknown field":    {"/api/currency", `{"code":"EUR"}`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s, http.MethodPut, tt.target, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 body=%s", rec.Code, rec.Body)
			}
		})
	}
}

func TestRolloverEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	seedLedger(t, store)

	rec := do(t, s, http.MethodPost, "/api/rollover", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[rolloverResponse](t, rec)
	if got.Period != "2025-02" || len(got.Created) != 2 || !got.Sync.Synced {
		t.Fatalf("unexpected rollover %+v", got)
	}

	again := decode[rolloverResponse](t, do(t, s, http.MethodPost, "/api/rollover", ""))
	if len(again.Created) != 0 {
		t.Fatalf("second rollover created %d", len(again.Created))
	}

	if rec := do(t, s, http.MethodGet, "/api/rollover", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestProjection(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"initial":1000,"monthly":100,"rate":12,"years":1}`
	first := decode[projectionResponse](t, do(t, s, http.MethodPost, "/api/projection", body))
	if first.Cached || len(first.Years) != 2 || first.Years[1].TotalValue != 2408 {
		t.Fatalf("unexpected projection %+v", first)
	}
	second := decode[projectionResponse](t, do(t, s, http.MethodPost, "/api/projection", body))
	if !second.Cached {
		t.Error("second identical projection should be served from cache")
	}

	// GET projects the ledger's default forecast
	def := decode[projectionResponse](t, do(t, s, http.MethodGet, "/api/projection", ""))
	if def.Forecast != core.DefaultForecast() || len(def.Years) != 11 {
		t.Fatalf("unexpected default projection %+v", def.Forecast)
	}

	if rec := do(t, s, http.MethodPost, "/api/projection", `{"initial":-1,"years":1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("negative initial status = %d, want 400", rec.Code)
	}
}

func TestReset(t *testing.T) {
	s, store := newTestServer(t)
	seedLedger(t, store)

	if rec := do(t, s, http.MethodPost, "/api/reset", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stored, _ := store.Load(context.Background(), "u1")
	if len(stored.Expenses) != 0 || len(stored.Assets) != 0 {
		t.Fatal("ledger not reset")
	}
}

func TestUnauthenticated(t *testing.T) {
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, nil, services.WithLogger(log.Discard()))
	provider, err := auth.NewJWT("secret")
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(":0", ledger, provider, Options{Logger: log.Discard()})
	defer s.Shutdown(context.Background())

	if rec := do(t, s, http.MethodGet, "/api/summary", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	token, _ := provider.Issue("u9", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[summaryResponse](t, rec); got.OwnerID != "u9" {
		t.Fatalf("owner = %q, want u9", got.OwnerID)
	}
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("status = %d content-type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}
