package exchange_test

import (
	"testing"

	"github.com/git-masi/memestock-backend/internal/exchange"
)

func TestPricePerShare(t *testing.T) {
	cases := []struct {
		total, quantity, want int64
	}{
		{5000, 10, 500},
		{100, 3, 33},  // 33.33 rounds down
		{200, 3, 67},  // 66.67 rounds up
		{500, 200, 3}, // 2.5 ties round half up
		{1, 2, 1},     // 0.5 ties round half up
		{500, 0, 0},   // guarded, no division
	}
	for _, tc := range cases {
		if got := exchange.PricePerShare(tc.total, tc.quantity); got != tc.want {
			t.Errorf("PricePerShare(%d, %d) = %d, want %d", tc.total, tc.quantity, got, tc.want)
		}
	}
}
