package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits stored for every amount
// column (decimal(20,4)).
const MoneyScale int32 = 4

// FitsMoneyScale reports whether d can be stored without rounding.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}
