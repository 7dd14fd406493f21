package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tally/internal/app"
	"tally/internal/handlers"
	"tally/internal/logger"
	"tally/internal/metrics"
	"tally/internal/services"
	"tally/internal/store"
	"tally/internal/testutil"
	"tally/internal/validator"
)

const operatorKey = "integration-operator-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	a := app.Build(store.NewGormStore(db), metrics.MustRecorder(), services.Options{VerifyInvariants: true})
	router := handlers.NewRouter(a.Handlers(2), operatorKey)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request as userID and returns the recorder.
func (app *testApp) request(method, path, body, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
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

// expectStatus fails the test when rec does not carry want.
func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// errorCode extracts error.code from an error reply.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// assertAmount compares a decimal string field with want.
func assertAmount(t *testing.T, got interface{}, want, what string) {
	t.Helper()
	s, ok := got.(string)
	if !ok {
		t.Fatalf("%s: expected decimal string, got %T (%v)", what, got, got)
	}
	if !decimal.RequireFromString(s).Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", what, s, want)
	}
}

// createAccount creates an account and returns its id.
func (app *testApp) createAccount(t *testing.T, userID, name, initial string) string {
	t.Helper()
	rec := app.request(http.MethodPost, "/api/v1/accounts",
		fmt.Sprintf(`{"name":%q,"initial_balance":%q}`, name, initial), userID)
	expectStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["account"].(map[string]interface{})["id"].(string)
}

// balance fetches the current balance of accountID.
func (app *testApp) balance(t *testing.T, userID, accountID string) string {
	t.Helper()
	rec := app.request(http.MethodGet, "/api/v1/accounts/"+accountID, "", userID)
	expectStatus(t, rec, http.StatusOK)
	return parseJSON(t, rec)["account"].(map[string]interface{})["balance"].(string)
}

// createCategory creates a category and returns its id.
func (app *testApp) createCategory(t *testing.T, userID, name, typ string) string {
	t.Helper()
	rec := app.request(http.MethodPost, "/api/v1/categories",
		fmt.Sprintf(`{"name":%q,"type":%q}`, name, typ), userID)
	expectStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["category"].(map[string]interface{})["id"].(string)
}
