package exchange

import (
	"github.com/shopspring/decimal"
)

// PricePerShare computes the discovered per-share price of a trade in
// integer cents: round(total/quantity), ties rounding half up.
func PricePerShare(total, quantity int64) int64 {
	if quantity <= 0 {
		return 0
	}
	return decimal.NewFromInt(total).
		Div(decimal.NewFromInt(quantity)).
		Round(0).
		IntPart()
}
