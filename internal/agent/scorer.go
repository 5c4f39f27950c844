package agent

import (
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/signal"
)

// ActionKind identifies what an agent decided to do on its turn.
type ActionKind string

const (
	ActionCreateOrder  ActionKind = "create_order"
	ActionFulfillOrder ActionKind = "fulfill_order"
	ActionCancelOrder  ActionKind = "cancel_order"
	ActionDoNothing    ActionKind = "do_nothing"
)

// Action is the utility scorer's output, ready to hand to the exchange.
type Action struct {
	Kind     ActionKind
	Type     model.OrderType
	OrderID  string
	Symbol   string
	Quantity int64
	Total    int64
}

const (
	baseScore      = 20
	doNothingScore = 10
	// topK bounds the randomized prefix: candidates are sorted by score
	// and one of the best topK is drawn uniformly. Fully deterministic
	// agents would be trivially front-runnable.
	topK = 5
)

type candidate struct {
	action Action
	score  int
}

// chooseAction enumerates and scores every action available to the agent
// under the snapshot, then draws uniformly from the top-scoring prefix.
// The do-nothing candidate is always present so the set is never empty.
func chooseAction(rng *rand.Rand, agent *model.Participant, snap *signal.Snapshot) Action {
	cands := scoreCandidates(rng, agent, snap)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	n := len(cands)
	if n > topK {
		n = topK
	}
	return cands[rng.Intn(n)].action
}

func scoreCandidates(rng *rand.Rand, agent *model.Participant, snap *signal.Snapshot) []candidate {
	prof := agent.Profile
	mostBought := signal.MostFrequentSymbol(snap.OpenBuyOrders)
	mostSold := signal.MostFrequentSymbol(snap.OpenSellOrders)
	deltas := signal.PriceDeltas(snap.FulfilledOrders)
	stockValue := signal.StockValue(agent, snap.Companies)
	lowCash, highCash := signal.CashBoosts(prof, agent.TotalCash, stockValue)

	var ownBuys, ownSells int
	for _, o := range snap.AgentOrders {
		if o.Type == model.OrderTypeBuy {
			ownBuys++
		} else {
			ownSells++
		}
	}

	// Frequency and price-pressure boosts key on the order's side, not the
	// agent's role in the trade: an agent filling someone's buy order is
	// selling shares, but it is still chasing the buying crowd.
	freqBuy := func(symbol string) int {
		if symbol != "" && symbol == mostBought {
			return prof.Fomo
		}
		return 0
	}
	freqSell := func(symbol string) int {
		if symbol != "" && symbol == mostSold {
			return prof.LossAversion
		}
		return 0
	}
	risingBoost := func(symbol string, weight int) int {
		if c := snap.Company(symbol); c != nil {
			if d := deltas[symbol]; d.IsPositive() {
				return pressureBoost(d, c.CurrentPricePerShare, weight, prof.Wildcard)
			}
		}
		return 0
	}
	fallingBoost := func(symbol string, weight int) int {
		if c := snap.Company(symbol); c != nil {
			if d := deltas[symbol]; d.IsNegative() {
				return pressureBoost(d, c.CurrentPricePerShare, weight, prof.Wildcard)
			}
		}
		return 0
	}
	collector := func(symbol string) int {
		if agent.Holding(symbol).QuantityHeld > 0 {
			return collectorBoost(prof)
		}
		return 0
	}

	cands := []candidate{{action: Action{Kind: ActionDoNothing}, score: doNothingScore}}

	// Fulfill someone's sell: the agent buys. Loss aversion tracks the
	// selling crowd and a falling price; spare cash pushes toward
	// spending. The 1.5x cash margin keeps agents from emptying their
	// wallet on a single fill.
	for _, o := range snap.OpenSellOrders {
		if o.OriginatingParticipant == agent.ID {
			continue
		}
		if agent.CashOnHand < o.Total*3/2 {
			continue
		}
		cands = append(cands, candidate{
			action: Action{Kind: ActionFulfillOrder, Type: o.Type, OrderID: o.ID, Symbol: o.Symbol},
			score:  baseScore + freqSell(o.Symbol) + fallingBoost(o.Symbol, prof.LossAversion) + highCash,
		})
	}

	// Fulfill someone's buy: the agent sells from unreserved holdings.
	// Fomo tracks the buying crowd and a rising price; a thin cash
	// position pushes toward liquidating.
	for _, o := range snap.OpenBuyOrders {
		if o.OriginatingParticipant == agent.ID {
			continue
		}
		if agent.Holding(o.Symbol).QuantityOnHand < o.Quantity {
			continue
		}
		cands = append(cands, candidate{
			action: Action{Kind: ActionFulfillOrder, Type: o.Type, OrderID: o.ID, Symbol: o.Symbol},
			score:  baseScore + freqBuy(o.Symbol) + risingBoost(o.Symbol, prof.Fomo) + collector(o.Symbol) + lowCash,
		})
	}

	// Create one candidate order per company per direction. Both sides
	// chase a falling price: a new buy is a dip entry, a new sell cuts a
	// losing position. The crowding penalty discourages stacking open
	// orders on the same side.
	for _, c := range snap.Companies {
		if c.CurrentPricePerShare <= 0 {
			continue
		}
		if c.CurrentPricePerShare*4 <= agent.CashOnHand*5 {
			if qty, total := sizeOrder(rng, agent, c, model.OrderTypeBuy); qty > 0 {
				cands = append(cands, candidate{
					action: Action{Kind: ActionCreateOrder, Type: model.OrderTypeBuy, Symbol: c.Symbol, Quantity: qty, Total: total},
					score: baseScore + freqBuy(c.Symbol) + fallingBoost(c.Symbol, prof.Fomo) +
						collector(c.Symbol) + highCash - crowdingPenalty(rng, ownBuys, prof.Wildcard),
				})
			}
		}
		if agent.Holding(c.Symbol).QuantityOnHand > 0 {
			if qty, total := sizeOrder(rng, agent, c, model.OrderTypeSell); qty > 0 {
				cands = append(cands, candidate{
					action: Action{Kind: ActionCreateOrder, Type: model.OrderTypeSell, Symbol: c.Symbol, Quantity: qty, Total: total},
					score: baseScore + freqSell(c.Symbol) + fallingBoost(c.Symbol, prof.LossAversion) +
						lowCash - crowdingPenalty(rng, ownSells, prof.Wildcard),
				})
			}
		}
	}

	// Cancel an own open order when the price has moved against it or the
	// cash position wants the reservation back.
	for _, o := range snap.AgentOrders {
		score := baseScore
		c := snap.Company(o.Symbol)
		d := deltas[o.Symbol]
		if o.Type == model.OrderTypeBuy {
			if c != nil && d.IsNegative() {
				score += pressureBoost(d, c.CurrentPricePerShare, prof.LossAversion, prof.Wildcard)
			}
			score += lowCash
		} else {
			if c != nil && d.IsPositive() {
				score += pressureBoost(d, c.CurrentPricePerShare, prof.Fomo, prof.Wildcard)
			}
			score += highCash
		}
		cands = append(cands, candidate{
			action: Action{Kind: ActionCancelOrder, Type: o.Type, OrderID: o.ID, Symbol: o.Symbol},
			score:  score,
		})
	}

	return cands
}

var two = decimal.NewFromInt(2)

// pressureBoost scales a per-share price delta by the mean of two
// personality weights, relative to the current price. Callers gate on the
// delta's sign; the boost itself is magnitude only.
func pressureBoost(delta decimal.Decimal, pricePerShare int64, w1, w2 int) int {
	if pricePerShare <= 0 {
		return 0
	}
	weight := decimal.NewFromInt(int64(w1 + w2)).Div(two)
	return int(delta.Abs().Div(decimal.NewFromInt(pricePerShare)).Mul(weight).Ceil().IntPart())
}

func collectorBoost(p model.RiskProfile) int {
	return (p.Collector + p.Wildcard + 1) / 2
}

func crowdingPenalty(rng *rand.Rand, openOrders, wildcard int) int {
	if openOrders == 0 || wildcard <= 0 {
		return 0
	}
	return openOrders * rng.Intn(wildcard)
}

// sizeOrder picks a quantity and total for a new order at a price deviated
// up to ±10% from the current share price, so agents probe prices rather
// than pin them. Buy totals never exceed unreserved cash; sell quantities
// never exceed unreserved shares.
func sizeOrder(rng *rand.Rand, agent *model.Participant, c model.Company, typ model.OrderType) (int64, int64) {
	factor := decimal.NewFromFloat(0.9 + rng.Float64()*0.2)
	pps := decimal.NewFromInt(c.CurrentPricePerShare).Mul(factor).Round(0).IntPart()
	if pps < 1 {
		pps = 1
	}

	var max int64
	if typ == model.OrderTypeBuy {
		max = agent.CashOnHand / pps
	} else {
		max = agent.Holding(c.Symbol).QuantityOnHand
	}
	if max < 1 {
		return 0, 0
	}
	qty := 1 + rng.Int63n(max)
	return qty, qty * pps
}
