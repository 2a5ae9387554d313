package paystack

import "github.com/shopspring/decimal"

// Subunits converts a major-unit amount to kobo, rounding half away from zero.
func Subunits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromSubunits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
