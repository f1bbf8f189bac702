package models

import (
	"github.com/shopspring/decimal"
)

// RoundAmount rounds to the stored precision.
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(AmountDecimals)
}
