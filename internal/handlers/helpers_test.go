package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tally/internal/logger"
	"tally/internal/middleware"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
	"tally/internal/store"
	"tally/internal/validator"
)

// --- test helpers ---

const testUserID = "user-1"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- mock audit service ---

type auditEntry struct {
	action     string
	resourceID string
}

type mockAuditService struct {
	entries []auditEntry
}

func (m *mockAuditService) Log(_ context.Context, _, action, _, resourceID, _ string, _ map[string]any) {
	m.entries = append(m.entries, auditEntry{action: action, resourceID: resourceID})
}

var _ services.AuditServicer = (*mockAuditService)(nil)

// --- mock account service ---

type mockAccountService struct {
	createAccountFn   func(userID, name, description string, initial decimal.Decimal) (*models.Account, error)
	getUserAccountsFn func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	getAccountByIDFn  func(userID, accountID string) (*models.Account, error)
	updateAccountFn   func(userID, accountID, name, description string) (*models.Account, error)
}

func (m *mockAccountService) CreateAccount(_ context.Context, userID, name, description string, initial decimal.Decimal) (*models.Account, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(userID, name, description, initial)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) GetUserAccounts(_ context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	if m.getUserAccountsFn != nil {
		return m.getUserAccountsFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Account{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockAccountService) GetAccountByID(_ context.Context, userID, accountID string) (*models.Account, error) {
	if m.getAccountByIDFn != nil {
		return m.getAccountByIDFn(userID, accountID)
	}
	return &models.Account{}, nil
}

func (m *mockAccountService) UpdateAccount(_ context.Context, userID, accountID, name, description string) (*models.Account, error) {
	if m.updateAccountFn != nil {
		return m.updateAccountFn(userID, accountID, name, description)
	}
	return &models.Account{}, nil
}

var _ services.AccountServicer = (*mockAccountService)(nil)

// --- mock ledger service ---

type mockLedgerService struct {
	depositFn       func(userID string, in services.DepositInput) (*services.LedgerResult, error)
	withdrawFn      func(userID string, in services.WithdrawInput) (*services.LedgerResult, error)
	transferFn      func(userID string, in services.TransferInput) (*services.LedgerResult, error)
	adjustBalanceFn func(userID, accountID string, balance decimal.Decimal) (*services.LedgerResult, error)
	deleteAccountFn func(userID, accountID string, transferTo *string) (*services.LedgerResult, error)
	reverseFn       func(userID, transactionID, description string) (*services.LedgerResult, error)
}

func emptyResult() *services.LedgerResult {
	return &services.LedgerResult{Transaction: &models.Transaction{Base: models.Base{ID: "tx-1"}}}
}

func (m *mockLedgerService) Deposit(_ context.Context, userID string, in services.DepositInput) (*services.LedgerResult, error) {
	if m.depositFn != nil {
		return m.depositFn(userID, in)
	}
	return emptyResult(), nil
}

func (m *mockLedgerService) Withdraw(_ context.Context, userID string, in services.WithdrawInput) (*services.LedgerResult, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(userID, in)
	}
	return emptyResult(), nil
}

func (m *mockLedgerService) Transfer(_ context.Context, userID string, in services.TransferInput) (*services.LedgerResult, error) {
	if m.transferFn != nil {
		return m.transferFn(userID, in)
	}
	return emptyResult(), nil
}

func (m *mockLedgerService) AdjustBalance(_ context.Context, userID, accountID string, balance decimal.Decimal) (*services.LedgerResult, error) {
	if m.adjustBalanceFn != nil {
		return m.adjustBalanceFn(userID, accountID, balance)
	}
	return emptyResult(), nil
}

func (m *mockLedgerService) DeleteAccount(_ context.Context, userID, accountID string, transferTo *string) (*services.LedgerResult, error) {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(userID, accountID, transferTo)
	}
	return &services.LedgerResult{}, nil
}

func (m *mockLedgerService) ReverseTransaction(_ context.Context, userID, transactionID, description string) (*services.LedgerResult, error) {
	if m.reverseFn != nil {
		return m.reverseFn(userID, transactionID, description)
	}
	return emptyResult(), nil
}

var _ services.LedgerServicer = (*mockLedgerService)(nil)

// --- mock transaction service ---

type mockTransactionService struct {
	getUserTransactionsFn func(userID string, filter store.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn  func(userID, transactionID string) (*models.Transaction, error)
	spendingFn            func(userID string, from, to time.Time) ([]store.CategorySpending, error)
}

func (m *mockTransactionService) GetUserTransactions(_ context.Context, userID string, filter store.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	if m.getUserTransactionsFn != nil {
		return m.getUserTransactionsFn(userID, filter, page)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(_ context.Context, userID, transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(userID, transactionID)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) SpendingByCategory(_ context.Context, userID string, from, to time.Time) ([]store.CategorySpending, error) {
	if m.spendingFn != nil {
		return m.spendingFn(userID, from, to)
	}
	return []store.CategorySpending{}, nil
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

// --- mock category service ---

type mockCategoryService struct {
	createCategoryFn    func(userID, name string, t models.CategoryType) (*models.Category, error)
	getUserCategoriesFn func(userID string, t *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	getCategoryByIDFn   func(userID, categoryID string) (*models.Category, error)
	updateCategoryFn    func(userID, categoryID, name string) (*models.Category, error)
	deleteCategoryFn    func(userID, categoryID string) error
}

func (m *mockCategoryService) CreateCategory(_ context.Context, userID, name string, t models.CategoryType) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(userID, name, t)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetUserCategories(_ context.Context, userID string, t *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	if m.getUserCategoriesFn != nil {
		return m.getUserCategoriesFn(userID, t, page)
	}
	resp := pagination.NewPageResponse([]models.Category{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCategoryService) GetCategoryByID(_ context.Context, userID, categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(userID, categoryID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) UpdateCategory(_ context.Context, userID, categoryID, name string) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(userID, categoryID, name)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) DeleteCategory(_ context.Context, userID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, categoryID)
	}
	return nil
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn   func(userID string, in services.CreateBudgetInput) (*models.Budget, error)
	getUserBudgetsFn func(userID string, filter store.BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn  func(userID, budgetID string) (*models.Budget, error)
	updateBudgetFn   func(userID, budgetID string, in services.UpdateBudgetInput) (*models.Budget, error)
	deleteBudgetFn   func(userID, budgetID string) error
	addCategoryFn    func(userID, budgetID, categoryID string, allocated decimal.Decimal) (*models.BudgetCategory, error)
	updateAllocFn    func(userID, budgetCategoryID string, allocated decimal.Decimal) (*models.BudgetCategory, error)
	reassignFn       func(userID, budgetCategoryID, categoryID string) (*models.BudgetCategory, error)
	deleteCategoryFn func(userID, budgetCategoryID string) error
	recomputeFn      func(userID, budgetID string) (*models.Budget, error)
	copyFn           func(userID, sourceID, name string, start time.Time) (*models.Budget, error)
	rollFn           func(userID, budgetID string) (*models.Budget, error)
	summaryFn        func(userID, budgetID string) (*services.BudgetSummary, error)
}

func (m *mockBudgetService) CreateBudget(_ context.Context, userID string, in services.CreateBudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, in)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(_ context.Context, userID string, filter store.BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, filter, page)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(_ context.Context, userID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(_ context.Context, userID, budgetID string, in services.UpdateBudgetInput) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, in)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(_ context.Context, userID, budgetID string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) AddBudgetCategory(_ context.Context, userID, budgetID, categoryID string, allocated decimal.Decimal) (*models.BudgetCategory, error) {
	if m.addCategoryFn != nil {
		return m.addCategoryFn(userID, budgetID, categoryID, allocated)
	}
	return &models.BudgetCategory{}, nil
}

func (m *mockBudgetService) UpdateBudgetCategoryAllocation(_ context.Context, userID, budgetCategoryID string, allocated decimal.Decimal) (*models.BudgetCategory, error) {
	if m.updateAllocFn != nil {
		return m.updateAllocFn(userID, budgetCategoryID, allocated)
	}
	return &models.BudgetCategory{}, nil
}

func (m *mockBudgetService) ReassignBudgetCategory(_ context.Context, userID, budgetCategoryID, categoryID string) (*models.BudgetCategory, error) {
	if m.reassignFn != nil {
		return m.reassignFn(userID, budgetCategoryID, categoryID)
	}
	return &models.BudgetCategory{}, nil
}

func (m *mockBudgetService) DeleteBudgetCategory(_ context.Context, userID, budgetCategoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, budgetCategoryID)
	}
	return nil
}

func (m *mockBudgetService) RecomputeSpent(_ context.Context, _, _ string) (*models.BudgetCategory, error) {
	return &models.BudgetCategory{}, nil
}

func (m *mockBudgetService) RecomputeBudget(_ context.Context, userID, budgetID string) (*models.Budget, error) {
	if m.recomputeFn != nil {
		return m.recomputeFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) CopyBudget(_ context.Context, userID, sourceID, name string, start time.Time) (*models.Budget, error) {
	if m.copyFn != nil {
		return m.copyFn(userID, sourceID, name, start)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) RollForward(_ context.Context, userID, budgetID string) (*models.Budget, error) {
	if m.rollFn != nil {
		return m.rollFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetBudgetSummary(_ context.Context, userID, budgetID string) (*services.BudgetSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(userID, budgetID)
	}
	return &services.BudgetSummary{}, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

// --- mock reconcile service ---

type mockReconcileService struct {
	reconcileFn func(opts services.ReconcileOptions) (*services.ReconcileReport, error)
}

func (m *mockReconcileService) Reconcile(_ context.Context, opts services.ReconcileOptions) (*services.ReconcileReport, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(opts)
	}
	return &services.ReconcileReport{Violations: []services.Violation{}}, nil
}

var _ services.ReconcileServicer = (*mockReconcileService)(nil)
