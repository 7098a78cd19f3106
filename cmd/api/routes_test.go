package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"budgetwise/internal/cache"
	"budgetwise/internal/config"
	"budgetwise/internal/events"
	"budgetwise/internal/logger"
	"budgetwise/internal/middleware"
	"budgetwise/internal/testutil"
	"budgetwise/internal/validator"
)

const testSchedulerKey = "cron-key"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

type testServer struct {
	router *gin.Engine
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		CORSOrigins:          []string{"*"},
		SchedulerAPIKey:      testSchedulerKey,
		TemplateSearchMonths: 6,
		RecurringWorkers:     2,
	}
	app := newApplication(db, cache.NewLRU(64, time.Minute), events.NopPublisher{}, cfg)
	return &testServer{router: newRouter(app, cfg)}
}

func (s *testServer) request(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) authed(method, path, body, token string) *httptest.ResponseRecorder {
	return s.request(method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func expectDecimal(t *testing.T, got interface{}, want string) {
	t.Helper()
	s, ok := got.(string)
	if !ok {
		t.Fatalf("expected decimal string, got %T (%v)", got, got)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	if !d.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected %s, got %s", want, s)
	}
}

// asSlice treats a JSON null as an empty list.
func asSlice(v interface{}) []interface{} {
	items, _ := v.([]interface{})
	return items
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"password123","first_name":"Test","last_name":"User"}`, email)
	rec := s.request(http.MethodPost, "/api/v1/auth/register", body, nil)
	expectStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["token"].(string)
}

// createJanuaryBudget creates a January 2026 budget and returns its id and
// the id of its Rent category.
func (s *testServer) createJanuaryBudget(t *testing.T, token string) (budgetID, rentID string) {
	t.Helper()
	rec := s.authed(http.MethodPost, "/api/v1/budgets", `{
		"month": 1, "year": 2026, "total_income": "3000",
		"categories": [
			{"name": "Rent", "type": "expense", "budget_amount": "1200", "color": "#FF0000"},
			{"name": "Salary", "type": "income", "budget_amount": "3000"}
		]
	}`, token)
	expectStatus(t, rec, http.StatusCreated)

	budget := parseJSON(t, rec)["budget"].(map[string]interface{})
	for _, raw := range budget["categories"].([]interface{}) {
		c := raw.(map[string]interface{})
		if c["name"] == "Rent" {
			rentID = c["id"].(string)
		}
	}
	if rentID == "" {
		t.Fatal("Rent category missing from created budget")
	}
	return budget["id"].(string), rentID
}

func (s *testServer) createMonthlyRent(t *testing.T, token, categoryID string) string {
	t.Helper()
	body := fmt.Sprintf(`{
		"type": "expense", "amount": "1200", "description": "Rent",
		"category_id": %q, "start_date": "2026-01-01T00:00:00Z", "interval": "monthly"
	}`, categoryID)
	rec := s.authed(http.MethodPost, "/api/v1/recurring", body, token)
	expectStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["recurring"].(map[string]interface{})["id"].(string)
}

func TestHealth(t *testing.T) {
	s := setupServer(t)
	rec := s.request(http.MethodGet, "/api/health", "", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := setupServer(t)
	for _, path := range []string{"/api/v1/profile", "/api/v1/budgets", "/api/v1/recurring"} {
		rec := s.request(http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestRecurringFlow_ProcessFillsGapMonths(t *testing.T) {
	s := setupServer(t)
	token := s.register(t, "flow@test.com")
	_, rentID := s.createJanuaryBudget(t, token)
	recurringID := s.createMonthlyRent(t, token, rentID)

	// March has no budget; February and March are both copied from January.
	rec := s.authed(http.MethodPost, "/api/v1/recurring/process", `{"month":3,"year":2026}`, token)
	expectStatus(t, rec, http.StatusOK)
	result := parseJSON(t, rec)
	if result["transactions_created"].(float64) != 1 {
		t.Errorf("expected 1 transaction created, got %v", result["transactions_created"])
	}
	if result["budgets_created"].(float64) != 2 {
		t.Errorf("expected 2 budgets created, got %v", result["budgets_created"])
	}

	rec = s.authed(http.MethodGet, "/api/v1/budgets/by-month?month=2&year=2026", "", token)
	expectStatus(t, rec, http.StatusOK)
	feb := parseJSON(t, rec)["budget"].(map[string]interface{})
	if n := len(asSlice(feb["categories"])); n != 2 {
		t.Errorf("expected February to copy 2 categories, got %d", n)
	}
	if n := len(asSlice(feb["transactions"])); n != 0 {
		t.Errorf("expected February to have no transactions, got %d", n)
	}

	rec = s.authed(http.MethodGet, "/api/v1/budgets/by-month?month=3&year=2026", "", token)
	expectStatus(t, rec, http.StatusOK)
	march := parseJSON(t, rec)["budget"].(map[string]interface{})
	txns := asSlice(march["transactions"])
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction in March, got %d", len(txns))
	}
	txn := txns[0].(map[string]interface{})
	if txn["is_recurrent"] != true || txn["recurrence_id"] != recurringID {
		t.Errorf("expected transaction linked to %s, got %v", recurringID, txn)
	}
	expectDecimal(t, txn["amount"], "1200")

	// Running the same month again creates nothing new.
	rec = s.authed(http.MethodPost, "/api/v1/recurring/process", `{"month":3,"year":2026}`, token)
	expectStatus(t, rec, http.StatusOK)
	again := parseJSON(t, rec)
	if again["transactions_created"].(float64) != 0 || again["budgets_created"].(float64) != 0 {
		t.Errorf("expected idempotent rerun, got %v", again)
	}

	rec = s.authed(http.MethodGet, "/api/v1/budgets/"+march["id"].(string)+"/summary", "", token)
	expectStatus(t, rec, http.StatusOK)
	summary := parseJSON(t, rec)["summary"].(map[string]interface{})
	expectDecimal(t, summary["total_expenses"], "1200")
	expectDecimal(t, summary["balance"], "1800")
}

func TestRecurringFlow_CascadeDeleteRefreshesSummary(t *testing.T) {
	s := setupServer(t)
	token := s.register(t, "cascade@test.com")
	budgetID, rentID := s.createJanuaryBudget(t, token)
	recurringID := s.createMonthlyRent(t, token, rentID)

	rec := s.authed(http.MethodPost, "/api/v1/recurring/process", `{"month":1,"year":2026}`, token)
	expectStatus(t, rec, http.StatusOK)

	summaryPath := "/api/v1/budgets/" + budgetID + "/summary"
	rec = s.authed(http.MethodGet, summaryPath, "", token)
	expectStatus(t, rec, http.StatusOK)
	expectDecimal(t, parseJSON(t, rec)["summary"].(map[string]interface{})["total_expenses"], "1200")

	rec = s.authed(http.MethodDelete, "/api/v1/recurring/"+recurringID+"?cascade=true", "", token)
	expectStatus(t, rec, http.StatusOK)

	rec = s.authed(http.MethodGet, summaryPath, "", token)
	expectStatus(t, rec, http.StatusOK)
	expectDecimal(t, parseJSON(t, rec)["summary"].(map[string]interface{})["total_expenses"], "0")
}

func TestRecurringFlow_UnexecuteAndRegenerate(t *testing.T) {
	s := setupServer(t)
	token := s.register(t, "regen@test.com")
	_, rentID := s.createJanuaryBudget(t, token)
	recurringID := s.createMonthlyRent(t, token, rentID)

	rec := s.authed(http.MethodPost, "/api/v1/recurring/process", `{"date":"2026-01-15"}`, token)
	expectStatus(t, rec, http.StatusOK)

	execPath := "/api/v1/recurring/" + recurringID + "/executions?month=1&year=2026"
	rec = s.authed(http.MethodGet, execPath, "", token)
	expectStatus(t, rec, http.StatusOK)
	if parseJSON(t, rec)["execution"].(map[string]interface{})["executed"] != true {
		t.Fatalf("expected January to be executed: %s", rec.Body.String())
	}

	rec = s.authed(http.MethodDelete, execPath, "", token)
	expectStatus(t, rec, http.StatusOK)

	rec = s.authed(http.MethodGet, execPath, "", token)
	expectStatus(t, rec, http.StatusOK)
	if parseJSON(t, rec)["execution"].(map[string]interface{})["executed"] != false {
		t.Fatalf("expected January to be unexecuted: %s", rec.Body.String())
	}

	rec = s.authed(http.MethodPost, "/api/v1/recurring/"+recurringID+"/regenerate", `{"month":1,"year":2026}`, token)
	expectStatus(t, rec, http.StatusOK)

	rec = s.authed(http.MethodGet, execPath, "", token)
	expectStatus(t, rec, http.StatusOK)
	if parseJSON(t, rec)["execution"].(map[string]interface{})["executed"] != true {
		t.Fatalf("expected January to be executed again: %s", rec.Body.String())
	}
}

func TestSchedulerEndpoint(t *testing.T) {
	s := setupServer(t)
	token := s.register(t, "cron@test.com")
	_, rentID := s.createJanuaryBudget(t, token)
	s.createMonthlyRent(t, token, rentID)

	rec := s.request(http.MethodPost, "/api/v1/internal/recurring/process", `{"month":2,"year":2026}`, nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	// A user token is not a scheduler key.
	rec = s.authed(http.MethodPost, "/api/v1/internal/recurring/process", `{"month":2,"year":2026}`, token)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = s.request(http.MethodPost, "/api/v1/internal/recurring/process", `{"month":2,"year":2026}`,
		map[string]string{middleware.SchedulerKeyHeader: testSchedulerKey})
	expectStatus(t, rec, http.StatusOK)
	summary := parseJSON(t, rec)["summary"].(map[string]interface{})
	if summary["users"].(float64) != 1 {
		t.Errorf("expected 1 user processed, got %v", summary["users"])
	}
	if summary["transactions_created"].(float64) != 1 {
		t.Errorf("expected 1 transaction created, got %v", summary["transactions_created"])
	}
}

func TestCORSPreflight(t *testing.T) {
	s := setupServer(t)
	rec := s.request(http.MethodOptions, "/api/v1/budgets", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected allow-origin *, got %q", got)
	}
}
