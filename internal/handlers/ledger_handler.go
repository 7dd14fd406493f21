package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tally/internal/services"
)

// LedgerHandler exposes the balance-changing operations.
type LedgerHandler struct {
	ledgerService services.LedgerServicer
	auditService  services.AuditServicer
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService services.LedgerServicer, auditService services.AuditServicer) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, auditService: auditService}
}

// MovementRequest is the payload of a deposit or a withdrawal.
type MovementRequest struct {
	Amount      string `json:"amount" binding:"required,decimal_positive"`
	CategoryID  string `json:"category_id" binding:"max=36"`
	Date        string `json:"date" binding:"omitempty,date"`
	Description string `json:"description" binding:"max=500"`
}

// TransferRequest is the payload of a transfer between two accounts.
type TransferRequest struct {
	FromAccountID string `json:"from_account_id" binding:"required,max=36"`
	ToAccountID   string `json:"to_account_id" binding:"required,max=36"`
	Amount        string `json:"amount" binding:"required,decimal_positive"`
	Date          string `json:"date" binding:"omitempty,date"`
	Description   string `json:"description" binding:"max=500"`
}

// AdjustBalanceRequest sets an account balance to an absolute value.
type AdjustBalanceRequest struct {
	Balance string `json:"balance" binding:"required,decimal_non_negative"`
}

// ReverseRequest optionally describes why a transaction is reversed.
type ReverseRequest struct {
	Description string `json:"description" binding:"max=500"`
}

type movement struct {
	accountID string
	req       MovementRequest
}

func (h *LedgerHandler) bindMovement(c *gin.Context) (string, *movement, error) {
	userID, err := getUserID(c)
	if err != nil {
		return "", nil, err
	}
	accountID, err := parsePathID(c, "id")
	if err != nil {
		return "", nil, err
	}
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", nil, bindError(err)
	}
	return userID, &movement{accountID: accountID, req: req}, nil
}

// Deposit handles money entering an account.
func (h *LedgerHandler) Deposit(c *gin.Context) {
	userID, m, err := h.bindMovement(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	amount, err := parseAmount("amount", m.req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}
	date, err := parseDate("date", m.req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.Deposit(c.Request.Context(), userID, services.DepositInput{
		AccountID:   m.accountID,
		Amount:      amount,
		CategoryID:  optionalString(m.req.CategoryID),
		Date:        date,
		Description: m.req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "DEPOSIT", "transaction", result.Transaction.ID, c.ClientIP(),
		map[string]any{"account_id": m.accountID, "amount": amount.String()})

	c.JSON(http.StatusCreated, result)
}

// Withdraw handles money leaving an account.
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	userID, m, err := h.bindMovement(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	amount, err := parseAmount("amount", m.req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}
	date, err := parseDate("date", m.req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.Withdraw(c.Request.Context(), userID, services.WithdrawInput{
		AccountID:   m.accountID,
		Amount:      amount,
		CategoryID:  optionalString(m.req.CategoryID),
		Date:        date,
		Description: m.req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "WITHDRAW", "transaction", result.Transaction.ID, c.ClientIP(),
		map[string]any{"account_id": m.accountID, "amount": amount.String()})

	c.JSON(http.StatusCreated, result)
}

// Transfer handles moving money between two of the caller's accounts.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.Transfer(c.Request.Context(), userID, services.TransferInput{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        amount,
		Date:          date,
		Description:   req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "TRANSFER", "transaction", result.Transaction.ID, c.ClientIP(),
		map[string]any{"from": req.FromAccountID, "to": req.ToAccountID, "amount": amount.String()})

	c.JSON(http.StatusCreated, result)
}

// AdjustBalance handles setting an account balance to an observed value.
func (h *LedgerHandler) AdjustBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	balance, err := parseAmount("balance", req.Balance)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.AdjustBalance(c.Request.Context(), userID, accountID, balance)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "ADJUST_BALANCE", "account", accountID, c.ClientIP(),
		map[string]any{"balance": balance.String()})

	c.JSON(http.StatusOK, result)
}

// DeleteAccount closes an account. A remaining balance must be moved with
// ?transfer_to=<account id>.
func (h *LedgerHandler) DeleteAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.DeleteAccount(c.Request.Context(), userID, accountID, optionalString(c.Query("transfer_to")))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "DELETE_ACCOUNT", "account", accountID, c.ClientIP(),
		map[string]any{"transfer_to": c.Query("transfer_to")})

	c.JSON(http.StatusOK, result)
}

// ReverseTransaction records a compensating transaction.
func (h *LedgerHandler) ReverseTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ReverseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}

	result, err := h.ledgerService.ReverseTransaction(c.Request.Context(), userID, transactionID, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, "REVERSE_TRANSACTION", "transaction", transactionID, c.ClientIP(),
		map[string]any{"reversal_id": result.Transaction.ID})

	c.JSON(http.StatusCreated, result)
}
