package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
	"tally/internal/store"
)

// TransactionHandler handles read access to the transaction record.
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// GetUserTransactions handles listing transactions with optional filters:
// from_date, to_date, type, category_id, account_id, min_amount, max_amount.
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetUserTransactions(c.Request.Context(), userID, filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (store.TransactionFilter, error) {
	var filter store.TransactionFilter
	var err error

	if filter.FromDate, err = parseOptionalDate(c, "from_date"); err != nil {
		return filter, err
	}
	if filter.ToDate, err = parseOptionalDate(c, "to_date"); err != nil {
		return filter, err
	}

	if v := c.Query("type"); v != "" {
		txType := models.TransactionType(v)
		if !txType.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be income, expense, or transfer")
		}
		filter.Type = &txType
	}

	filter.CategoryID = optionalString(c.Query("category_id"))
	filter.AccountID = optionalString(c.Query("account_id"))

	if v := c.Query("min_amount"); v != "" {
		amt, err := decimal.NewFromString(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid min_amount")
		}
		filter.MinAmount = &amt
	}

	if v := c.Query("max_amount"); v != "" {
		amt, err := decimal.NewFromString(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid max_amount")
		}
		filter.MaxAmount = &amt
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a specific transaction
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
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

	transaction, err := h.transactionService.GetTransactionByID(c.Request.Context(), userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// GetSpending handles the per-category expense totals between from_date and
// to_date, both inclusive and required.
func (h *TransactionHandler) GetSpending(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, err := parseOptionalDate(c, "from_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseOptionalDate(c, "to_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if from == nil || to == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_date and to_date are required"))
		return
	}

	rows, err := h.transactionService.SpendingByCategory(c.Request.Context(), userID, *from, *to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"spending": rows})
}
