// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/period"
)

// DateLayout is the calendar-date format accepted in request bodies and queries.
const DateLayout = "2006-01-02"

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn installs the custom validations on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("period_type", validatePeriodType)
	_ = v.RegisterValidation("category_type", validateCategoryType)
	_ = v.RegisterValidation("transaction_type", validateTransactionType)
	_ = v.RegisterValidation("decimal_positive", validateDecimalPositive)
	_ = v.RegisterValidation("decimal_non_negative", validateDecimalNonNegative)
	_ = v.RegisterValidation("date", validateDate)
}

func validatePeriodType(fl validator.FieldLevel) bool {
	return period.Type(fl.Field().String()).Valid()
}

func validateCategoryType(fl validator.FieldLevel) bool {
	return models.CategoryType(fl.Field().String()).Valid()
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return models.TransactionType(fl.Field().String()).Valid()
}

func validateDecimalPositive(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive() && models.FitsMoneyScale(d)
}

func validateDecimalNonNegative(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && !d.IsNegative() && models.FitsMoneyScale(d)
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}
