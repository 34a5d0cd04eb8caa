package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"budgetbook/internal/handlers"
	"budgetbook/internal/ledger"
	"budgetbook/internal/logger"
	"budgetbook/internal/money"
	"budgetbook/internal/router"
	"budgetbook/internal/services"
	"budgetbook/internal/testutil"
	"budgetbook/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB        *gorm.DB
	Router    *gin.Engine
	Publisher *testutil.RecordingPublisher
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	return setupAppWithPolicy(t, ledger.PolicySkip)
}

func setupAppWithPolicy(t *testing.T, policy ledger.Policy) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	pub := &testutil.RecordingPublisher{}
	l := ledger.New(policy)

	// Services
	userService := services.NewUserService(db, "temp.com", pub)
	budgetService := services.NewBudgetService(db, l, pub)
	expenseService := services.NewExpenseService(db, l, pub)
	incomeService := services.NewIncomeService(db, pub)
	overviewService := services.NewOverviewService(db, money.NewFormatter("KSH"))
	auditService := services.NewAuditService(db)

	r := router.New(router.Options{}, router.Handlers{
		Auth:     handlers.NewAuthHandler(userService),
		Budget:   handlers.NewBudgetHandler(budgetService, auditService),
		Expense:  handlers.NewExpenseHandler(expenseService, auditService),
		Income:   handlers.NewIncomeHandler(incomeService, auditService),
		Overview: handlers.NewOverviewHandler(overviewService),
	})

	return &testApp{DB: db, Router: r, Publisher: pub}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// errorCode extracts error.code from an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// registerUser signs up a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, identifier, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, identifier, password)
	rec := app.request("POST", "/api/v1/auth/signup", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser signs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, identifier, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, identifier, password)
	rec := app.request("POST", "/api/v1/auth/signin", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("signin failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// createResource POSTs body to path and returns the id of the entity found under key.
func (app *testApp) createResource(t *testing.T, token, path, key, body string) string {
	t.Helper()
	rec := app.request("POST", path, body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST %s: expected 201, got %d: %s", path, rec.Code, rec.Body.String())
	}
	entity := parseJSON(t, rec)[key].(map[string]interface{})
	return entity["id"].(string)
}

// budgetSpent reads a budget's spent amount through the API.
func (app *testApp) budgetSpent(t *testing.T, token, budgetID string) int64 {
	t.Helper()
	rec := app.request("GET", "/api/v1/budgets/"+budgetID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get budget: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	budget := parseJSON(t, rec)["budget"].(map[string]interface{})
	return int64(budget["spent"].(float64))
}
