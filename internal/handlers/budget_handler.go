package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/period"
	"tally/internal/services"
	"tally/internal/store"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
// The end date follows from the start date and the period type.
type CreateBudgetRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	PeriodType  string `json:"period_type" binding:"required,period_type"`
	StartDate   string `json:"start_date" binding:"required,date"`
	TotalAmount string `json:"total_amount" binding:"required,decimal_positive"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	PeriodType  *string `json:"period_type" binding:"omitempty,period_type"`
	StartDate   *string `json:"start_date" binding:"omitempty,date"`
	TotalAmount *string `json:"total_amount" binding:"omitempty,decimal_positive"`
}

// CopyBudgetRequest names the copy and its start date.
type CopyBudgetRequest struct {
	Name      string `json:"name" binding:"max=100"`
	StartDate string `json:"start_date" binding:"required,date"`
}

// AllocationRequest allocates part of a budget to an expense category.
type AllocationRequest struct {
	CategoryID      string `json:"category_id" binding:"required,max=36"`
	AllocatedAmount string `json:"allocated_amount" binding:"required,decimal_non_negative"`
}

// UpdateAllocationRequest changes an allocation amount, its category, or both.
type UpdateAllocationRequest struct {
	CategoryID      *string `json:"category_id" binding:"omitempty,max=36"`
	AllocatedAmount *string `json:"allocated_amount" binding:"omitempty,decimal_non_negative"`
}

// CreateBudget handles the creation of a new budget.
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		respondWithError(c, err)
		return
	}
	total, err := parseAmount("total_amount", req.TotalAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.CreateBudget(c.Request.Context(), userID, services.CreateBudgetInput{
		Name:        req.Name,
		PeriodType:  period.Type(req.PeriodType),
		StartDate:   start,
		TotalAmount: total,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "CREATE_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]any{"name": req.Name, "total_amount": req.TotalAmount, "period_type": req.PeriodType})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetBudgets handles listing budgets, optionally filtered by period_type and
// active_on (a date inside the budget window).
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query struct {
		pagination.PageRequest
		PeriodType string `form:"period_type" binding:"omitempty,period_type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	var filter store.BudgetFilter
	if query.PeriodType != "" {
		t := period.Type(query.PeriodType)
		filter.PeriodType = &t
	}
	if filter.ActiveOn, err = parseOptionalDate(c, "active_on"); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.budgetService.GetUserBudgets(c.Request.Context(), userID, filter, query.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudget handles retrieving a specific budget with its allocations.
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget handles updating an existing budget. Moving the window
// recomputes every allocation's spent amount.
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	in := services.UpdateBudgetInput{Name: req.Name}
	if req.PeriodType != nil {
		t := period.Type(*req.PeriodType)
		in.PeriodType = &t
	}
	if req.StartDate != nil {
		start, err := parseDate("start_date", *req.StartDate)
		if err != nil {
			respondWithError(c, err)
			return
		}
		in.StartDate = &start
	}
	if req.TotalAmount != nil {
		total, err := parseAmount("total_amount", *req.TotalAmount)
		if err != nil {
			respondWithError(c, err)
			return
		}
		in.TotalAmount = &total
	}

	budget, err := h.budgetService.UpdateBudget(c.Request.Context(), userID, budgetID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "UPDATE_BUDGET", "budget", budgetID, c.ClientIP(),
		map[string]any{"name": req.Name, "period_type": req.PeriodType, "start_date": req.StartDate, "total_amount": req.TotalAmount})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteBudget handles deleting a budget and its allocations.
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(c.Request.Context(), userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "DELETE_BUDGET", "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// GetBudgetSummary handles retrieving allocation and usage figures for a budget.
func (h *BudgetHandler) GetBudgetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.budgetService.GetBudgetSummary(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// CopyBudget handles duplicating a budget's allocations into a new window.
func (h *BudgetHandler) CopyBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CopyBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.CopyBudget(c.Request.Context(), userID, budgetID, req.Name, start)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "COPY_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]any{"source_budget_id": budgetID, "start_date": req.StartDate})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// RollForward handles copying a budget into the period right after it.
func (h *BudgetHandler) RollForward(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.RollForward(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "ROLL_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]any{"source_budget_id": budgetID})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// RecomputeBudget handles refreshing every spent amount of a budget.
func (h *BudgetHandler) RecomputeBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.RecomputeBudget(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// AddBudgetCategory handles allocating part of a budget to a category.
func (h *BudgetHandler) AddBudgetCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	allocated, err := parseAmount("allocated_amount", req.AllocatedAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	bc, err := h.budgetService.AddBudgetCategory(c.Request.Context(), userID, budgetID, req.CategoryID, allocated)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "ADD_BUDGET_CATEGORY", "budget_category", bc.ID, c.ClientIP(),
		map[string]any{"budget_id": budgetID, "category_id": req.CategoryID, "allocated_amount": req.AllocatedAmount})

	c.JSON(http.StatusCreated, gin.H{"budget_category": bc})
}

// UpdateBudgetCategory handles changing an allocation. A new category is
// applied before a new amount.
func (h *BudgetHandler) UpdateBudgetCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetCategoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	if req.CategoryID == nil && req.AllocatedAmount == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "category_id or allocated_amount is required"))
		return
	}

	var allocated decimal.Decimal
	if req.AllocatedAmount != nil {
		if allocated, err = parseAmount("allocated_amount", *req.AllocatedAmount); err != nil {
			respondWithError(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	var bc *models.BudgetCategory
	if req.CategoryID != nil {
		if bc, err = h.budgetService.ReassignBudgetCategory(ctx, userID, budgetCategoryID, *req.CategoryID); err != nil {
			respondWithError(c, err)
			return
		}
	}
	if req.AllocatedAmount != nil {
		if bc, err = h.budgetService.UpdateBudgetCategoryAllocation(ctx, userID, budgetCategoryID, allocated); err != nil {
			respondWithError(c, err)
			return
		}
	}

	h.auditService.Log(ctx, userID, "UPDATE_BUDGET_CATEGORY", "budget_category", budgetCategoryID, c.ClientIP(),
		map[string]any{"category_id": req.CategoryID, "allocated_amount": req.AllocatedAmount})

	c.JSON(http.StatusOK, gin.H{"budget_category": bc})
}

// DeleteBudgetCategory handles removing an allocation from its budget.
func (h *BudgetHandler) DeleteBudgetCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetCategoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudgetCategory(c.Request.Context(), userID, budgetCategoryID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "DELETE_BUDGET_CATEGORY", "budget_category", budgetCategoryID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Budget category deleted successfully"})
}
