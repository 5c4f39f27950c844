// Package signal derives market signals from bounded order windows: order
// frequency per symbol, price deltas implied by recently fulfilled orders,
// and cash-ratio boosts. Everything here is a pure function of a snapshot
// so the utility scorer stays deterministic under test.
package signal

import (
	"github.com/shopspring/decimal"

	"github.com/git-masi/memestock-backend/internal/model"
)

// wealthRatioCap bounds totalCash/totalStockValue. An all-cash participant
// has an unbounded ratio; the cap keeps cash boosts finite.
var wealthRatioCap = decimal.NewFromInt(10)

var (
	lowCashThreshold  = decimal.RequireFromString("0.08")
	highCashThreshold = decimal.RequireFromString("0.2")
)

// Snapshot is the bounded market view one scorer invocation works from.
// All order slices are most-recent-first windows.
type Snapshot struct {
	Companies       []model.Company
	OpenBuyOrders   []model.Order
	OpenSellOrders  []model.Order
	FulfilledOrders []model.Order
	// AgentOrders are the acting agent's own open orders.
	AgentOrders []model.Order
}

// Company returns the snapshot's company for symbol, nil if unknown.
func (s *Snapshot) Company(symbol string) *model.Company {
	for i := range s.Companies {
		if s.Companies[i].Symbol == symbol {
			return &s.Companies[i]
		}
	}
	return nil
}

// MostFrequentSymbol returns the symbol with the most orders in the
// window. Ties break toward the symbol seen first in the input ordering;
// an empty window yields "".
func MostFrequentSymbol(orders []model.Order) string {
	if len(orders) == 0 {
		return ""
	}

	counts := make(map[string]int)
	var firstSeen []string
	for _, o := range orders {
		if _, ok := counts[o.Symbol]; !ok {
			firstSeen = append(firstSeen, o.Symbol)
		}
		counts[o.Symbol]++
	}

	best := firstSeen[0]
	for _, symbol := range firstSeen[1:] {
		if counts[symbol] > counts[best] {
			best = symbol
		}
	}
	return best
}

// PriceDeltas groups fulfilled orders by symbol (input is newest first)
// and sums the per-share price difference of each consecutive pair. The
// oldest order of a symbol has no successor and contributes nothing.
// Results are signed cents; positive means the price is rising.
func PriceDeltas(fulfilled []model.Order) map[string]decimal.Decimal {
	bySymbol := make(map[string][]model.Order)
	for _, o := range fulfilled {
		bySymbol[o.Symbol] = append(bySymbol[o.Symbol], o)
	}

	deltas := make(map[string]decimal.Decimal, len(bySymbol))
	for symbol, orders := range bySymbol {
		change := decimal.Zero
		for i := 0; i+1 < len(orders); i++ {
			change = change.Add(perShare(orders[i]).Sub(perShare(orders[i+1])))
		}
		deltas[symbol] = change
	}
	return deltas
}

func perShare(o model.Order) decimal.Decimal {
	if o.Quantity == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(o.Total).Div(decimal.NewFromInt(o.Quantity))
}

// StockValue is the mark-to-market value in cents of the participant's
// holdings at current company prices.
func StockValue(p *model.Participant, companies []model.Company) int64 {
	prices := make(map[string]int64, len(companies))
	for _, c := range companies {
		prices[c.Symbol] = c.CurrentPricePerShare
	}

	var total int64
	for symbol, holding := range p.Holdings {
		total += holding.QuantityHeld * prices[symbol]
	}
	return total
}

// CashBoosts derives the low/high cash boosts from the agent's wealth
// ratio (total cash vs. stock value). A low ratio boosts the desire to
// sell, a high ratio the desire to buy.
func CashBoosts(profile model.RiskProfile, totalCash, totalStockValue int64) (lowCash, highCash int) {
	ratio := wealthRatioCap
	if totalStockValue > 0 {
		ratio = decimal.NewFromInt(totalCash).Div(decimal.NewFromInt(totalStockValue))
		if ratio.GreaterThan(wealthRatioCap) {
			ratio = wealthRatioCap
		}
	}

	if ratio.LessThanOrEqual(lowCashThreshold) {
		lowCash = int(decimal.NewFromInt(int64(profile.LossAversion)).Mul(ratio).Ceil().IntPart())
	}
	if ratio.GreaterThanOrEqual(highCashThreshold) {
		highCash = int(decimal.NewFromInt(int64(profile.Collector)).Mul(ratio).Ceil().IntPart())
	}
	return lowCash, highCash
}
