// Package errors provides the error taxonomy of the ledger engine.
// Every service-layer failure is (or unwraps to) an AppError so callers get a
// stable code and HTTP status without internal details leaking out.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code so that a sentinel compares equal to any
// derived copy produced by Wrap or WithMessage.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Validation errors. All of them are caller-correctable and are never retried.
var (
	ErrInvalidInput            = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrSameAccountTransfer     = &AppError{Code: "SAME_ACCOUNT_TRANSFER", Message: "Cannot transfer to the same account", StatusCode: http.StatusBadRequest}
	ErrInvalidCategoryType     = &AppError{Code: "INVALID_CATEGORY_TYPE", Message: "Category type does not match the operation", StatusCode: http.StatusBadRequest}
	ErrDuplicateBudgetCategory = &AppError{Code: "DUPLICATE_BUDGET_CATEGORY", Message: "Category is already allocated in this budget", StatusCode: http.StatusBadRequest}
	ErrBalanceRequiresTarget   = &AppError{Code: "BALANCE_REQUIRES_TARGET", Message: "Account has a remaining balance; a transfer target is required", StatusCode: http.StatusBadRequest}
	ErrCategoryInUse           = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is referenced by transactions or budgets", StatusCode: http.StatusConflict}
	ErrNotReversible           = &AppError{Code: "TRANSACTION_NOT_REVERSIBLE", Message: "A reversal cannot itself be reversed", StatusCode: http.StatusBadRequest}
	ErrAlreadyReversed         = &AppError{Code: "TRANSACTION_ALREADY_REVERSED", Message: "Transaction has already been reversed", StatusCode: http.StatusConflict}
)

// Not-found errors.
var (
	ErrNotFound               = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrAccountNotFound        = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrCategoryNotFound       = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrBudgetNotFound         = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrBudgetCategoryNotFound = &AppError{Code: "BUDGET_CATEGORY_NOT_FOUND", Message: "Budget category not found", StatusCode: http.StatusNotFound}
)

// Business-rule errors. Their typed counterparts in typed.go carry the amounts.
var (
	ErrInsufficientBalance  = &AppError{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient account balance", StatusCode: http.StatusUnprocessableEntity}
	ErrOverAllocation       = &AppError{Code: "OVER_ALLOCATION", Message: "Allocation exceeds the budget total", StatusCode: http.StatusUnprocessableEntity}
	ErrInactiveAccount      = &AppError{Code: "INACTIVE_ACCOUNT", Message: "Account is not active", StatusCode: http.StatusConflict}
	ErrConsistencyViolation = &AppError{Code: "CONSISTENCY_VIOLATION", Message: "Ledger invariant violated; operation rolled back", StatusCode: http.StatusInternalServerError}
)

// General errors.
var (
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "User identity required", StatusCode: http.StatusUnauthorized}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// IsValidation reports whether err is a caller-correctable input error.
func IsValidation(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.StatusCode == http.StatusBadRequest
}

// IsNotFound reports whether err refers to a missing entity.
func IsNotFound(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.StatusCode == http.StatusNotFound
}

// Code extracts the AppError code from err, or "" when err is not an AppError.
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
