package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tally/internal/middleware"
)

// Handlers groups every HTTP handler the API mounts.
type Handlers struct {
	Accounts     *AccountHandler
	Ledger       *LedgerHandler
	Transactions *TransactionHandler
	Categories   *CategoryHandler
	Budgets      *BudgetHandler
	Periods      *PeriodHandler
	Operator     *OperatorHandler
}

// NewRouter builds the gin engine with the middleware chain and all routes.
func NewRouter(h Handlers, operatorAPIKey string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	operator := v1.Group("/operator")
	operator.Use(middleware.OperatorAuth(operatorAPIKey))
	operator.POST("/reconcile", h.Operator.Reconcile)

	protected := v1.Group("/")
	protected.Use(middleware.UserIdentity())

	accounts := protected.Group("/accounts")
	accounts.POST("", h.Accounts.CreateAccount)
	accounts.GET("", h.Accounts.GetUserAccounts)
	accounts.GET("/:id", h.Accounts.GetAccountByID)
	accounts.PUT("/:id", h.Accounts.UpdateAccount)
	accounts.DELETE("/:id", h.Ledger.DeleteAccount)
	accounts.POST("/:id/deposit", h.Ledger.Deposit)
	accounts.POST("/:id/withdraw", h.Ledger.Withdraw)
	accounts.PUT("/:id/balance", h.Ledger.AdjustBalance)

	protected.POST("/transfers", h.Ledger.Transfer)

	transactions := protected.Group("/transactions")
	transactions.GET("", h.Transactions.GetUserTransactions)
	transactions.GET("/spending", h.Transactions.GetSpending)
	transactions.GET("/:id", h.Transactions.GetTransactionByID)
	transactions.POST("/:id/reverse", h.Ledger.ReverseTransaction)

	categories := protected.Group("/categories")
	categories.POST("", h.Categories.CreateCategory)
	categories.GET("", h.Categories.GetUserCategories)
	categories.GET("/:id", h.Categories.GetCategoryByID)
	categories.PUT("/:id", h.Categories.UpdateCategory)
	categories.DELETE("/:id", h.Categories.DeleteCategory)

	budgets := protected.Group("/budgets")
	budgets.POST("", h.Budgets.CreateBudget)
	budgets.GET("", h.Budgets.GetBudgets)
	budgets.GET("/:id", h.Budgets.GetBudget)
	budgets.PUT("/:id", h.Budgets.UpdateBudget)
	budgets.DELETE("/:id", h.Budgets.DeleteBudget)
	budgets.GET("/:id/summary", h.Budgets.GetBudgetSummary)
	budgets.POST("/:id/copy", h.Budgets.CopyBudget)
	budgets.POST("/:id/roll", h.Budgets.RollForward)
	budgets.POST("/:id/recompute", h.Budgets.RecomputeBudget)
	budgets.POST("/:id/categories", h.Budgets.AddBudgetCategory)

	budgetCategories := protected.Group("/budget-categories")
	budgetCategories.PUT("/:id", h.Budgets.UpdateBudgetCategory)
	budgetCategories.DELETE("/:id", h.Budgets.DeleteBudgetCategory)

	protected.GET("/periods/window", h.Periods.GetWindow)

	return router
}
