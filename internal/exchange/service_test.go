package exchange_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/git-masi/memestock-backend/internal/exchange"
	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/store"
)

// newTestEnv creates an exchange service over an in-memory store.
func newTestEnv(t *testing.T) (*exchange.Service, *ledger.Ledger) {
	t.Helper()
	lg := ledger.New(store.NewMemoryStore())
	return exchange.NewService(lg, nil), lg
}

func seedCompany(t *testing.T, lg *ledger.Ledger, symbol string, price int64) {
	t.Helper()
	c := &model.Company{
		Symbol:                symbol,
		Name:                  symbol + " Inc",
		CurrentPricePerShare:  price,
		PreviousPricePerShare: price,
		Created:               time.Now().UTC(),
	}
	if err := lg.Store().Apply(context.Background(), ledger.PutCompany(c, store.IfNotExists())); err != nil {
		t.Fatalf("seed company %s: %v", symbol, err)
	}
}

// seedParticipant writes a participant with a fixed balance sheet so tests
// can assert exact figures.
func seedParticipant(t *testing.T, lg *ledger.Ledger, name string, cash int64, holdings map[string]model.Holding) *model.Participant {
	t.Helper()
	if holdings == nil {
		holdings = make(map[string]model.Holding)
	}
	now := time.Now().UTC()
	p := &model.Participant{
		ID:          ledger.NewParticipantID(model.KindHuman, now),
		Kind:        model.KindHuman,
		DisplayName: name,
		TotalCash:   cash,
		CashOnHand:  cash,
		Holdings:    holdings,
		Created:     now,
	}
	if err := lg.Store().Apply(context.Background(), ledger.PutParticipant(p, store.IfNotExists())); err != nil {
		t.Fatalf("seed participant %s: %v", name, err)
	}
	return p
}

func reload(t *testing.T, svc *exchange.Service, id string) *model.Participant {
	t.Helper()
	p, err := svc.GetParticipant(context.Background(), id)
	if err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return p
}

// --- Order creation ---

func TestCreateBuyOrderReservesCash(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 10000, nil)

	o, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 10, Total: 5000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if o.Status != model.OrderStatusOpen || o.Buyer != a.ID || o.Seller != "" {
		t.Errorf("order = %+v", o)
	}

	a = reload(t, svc, a.ID)
	if a.CashOnHand != 5000 {
		t.Errorf("cashOnHand = %d, want 5000 reserved", a.CashOnHand)
	}
	if a.TotalCash != 10000 {
		t.Errorf("totalCash = %d, want 10000 untouched until fulfillment", a.TotalCash)
	}
}

func TestCreateSellOrderReservesShares(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 1000, map[string]model.Holding{
		"MEME": {QuantityHeld: 20, QuantityOnHand: 20},
	})

	if _, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeSell, Symbol: "MEME", Quantity: 15, Total: 7500,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	a = reload(t, svc, a.ID)
	h := a.Holding("MEME")
	if h.QuantityOnHand != 5 || h.QuantityHeld != 20 {
		t.Errorf("holding = %+v, want onHand 5, held 20", h)
	}
}

func TestCreateOrderAffordability(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 1000, map[string]model.Holding{
		"MEME": {QuantityHeld: 2, QuantityOnHand: 2},
	})

	_, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 10, Total: 5000,
	})
	if !errors.Is(err, exchange.ErrInsufficientFunds) {
		t.Errorf("overdrawn buy error = %v, want ErrInsufficientFunds", err)
	}

	_, err = svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeSell, Symbol: "MEME", Quantity: 10, Total: 5000,
	})
	if !errors.Is(err, exchange.ErrInsufficientShares) {
		t.Errorf("overdrawn sell error = %v, want ErrInsufficientShares", err)
	}

	_, err = svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "NOPE", Quantity: 1, Total: 100,
	})
	if !errors.Is(err, exchange.ErrNotFound) {
		t.Errorf("unknown symbol error = %v, want ErrNotFound", err)
	}
}

// --- Fulfillment ---

func TestFulfillBuyOrder(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 450)
	a := seedParticipant(t, lg, "alice", 10000, nil)
	b := seedParticipant(t, lg, "bob", 2000, map[string]model.Holding{
		"MEME": {QuantityHeld: 20, QuantityOnHand: 20},
	})

	o, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 10, Total: 5000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	o, err = svc.FulfillOrder(ctx, o.ID, b.ID)
	if err != nil {
		t.Fatalf("fulfill order: %v", err)
	}
	if o.Status != model.OrderStatusFulfilled || o.Seller != b.ID {
		t.Errorf("order = %+v", o)
	}

	a = reload(t, svc, a.ID)
	if a.TotalCash != 5000 || a.CashOnHand != 5000 {
		t.Errorf("buyer cash = total %d / onHand %d, want 5000 / 5000", a.TotalCash, a.CashOnHand)
	}
	ah := a.Holding("MEME")
	if ah.QuantityHeld != 10 || ah.QuantityOnHand != 10 {
		t.Errorf("buyer holding = %+v, want 10 / 10", ah)
	}

	b = reload(t, svc, b.ID)
	if b.TotalCash != 7000 || b.CashOnHand != 7000 {
		t.Errorf("seller cash = total %d / onHand %d, want 7000 / 7000", b.TotalCash, b.CashOnHand)
	}
	bh := b.Holding("MEME")
	if bh.QuantityHeld != 10 || bh.QuantityOnHand != 10 {
		t.Errorf("seller holding = %+v, want 10 / 10", bh)
	}

	c, err := svc.GetCompany(ctx, "MEME")
	if err != nil {
		t.Fatalf("get company: %v", err)
	}
	if c.CurrentPricePerShare != 500 || c.PreviousPricePerShare != 450 {
		t.Errorf("price = %d (prev %d), want 500 (prev 450)", c.CurrentPricePerShare, c.PreviousPricePerShare)
	}

	// Both sides now see the order in their history as fulfilled.
	for _, id := range []string{a.ID, b.ID} {
		po, err := lg.GetParticipantOrder(ctx, id, o.ID)
		if err != nil {
			t.Fatalf("projection for %s: %v", id, err)
		}
		if po.Status != model.OrderStatusFulfilled {
			t.Errorf("projection status for %s = %s", id, po.Status)
		}
	}
}

func TestFulfillSellOrder(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 1000, map[string]model.Holding{
		"MEME": {QuantityHeld: 10, QuantityOnHand: 10},
	})
	b := seedParticipant(t, lg, "bob", 10000, nil)

	o, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeSell, Symbol: "MEME", Quantity: 10, Total: 4000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := svc.FulfillOrder(ctx, o.ID, b.ID); err != nil {
		t.Fatalf("fulfill order: %v", err)
	}

	a = reload(t, svc, a.ID)
	if a.TotalCash != 5000 || a.CashOnHand != 5000 {
		t.Errorf("seller cash = total %d / onHand %d, want 5000 / 5000", a.TotalCash, a.CashOnHand)
	}
	ah := a.Holding("MEME")
	if ah.QuantityHeld != 0 || ah.QuantityOnHand != 0 {
		t.Errorf("seller holding = %+v, want 0 / 0", ah)
	}

	b = reload(t, svc, b.ID)
	if b.TotalCash != 6000 || b.CashOnHand != 6000 {
		t.Errorf("buyer cash = total %d / onHand %d, want 6000 / 6000", b.TotalCash, b.CashOnHand)
	}
	bh := b.Holding("MEME")
	if bh.QuantityHeld != 10 || bh.QuantityOnHand != 10 {
		t.Errorf("buyer holding = %+v, want 10 / 10", bh)
	}
}

func TestFulfillOrderRejections(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 10000, nil)
	broke := seedParticipant(t, lg, "carol", 100, nil)

	o, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 10, Total: 5000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := svc.FulfillOrder(ctx, o.ID, a.ID); !errors.Is(err, exchange.ErrSelfTrade) {
		t.Errorf("self fulfill error = %v, want ErrSelfTrade", err)
	}
	// Completing a buy requires shares; carol has none.
	if _, err := svc.FulfillOrder(ctx, o.ID, broke.ID); !errors.Is(err, exchange.ErrInsufficientShares) {
		t.Errorf("shareless fulfill error = %v, want ErrInsufficientShares", err)
	}
	if _, err := svc.FulfillOrder(ctx, "ORDER#nope", a.ID); !errors.Is(err, exchange.ErrNotFound) {
		t.Errorf("unknown order error = %v, want ErrNotFound", err)
	}
}

func TestFulfilledOrderIsTerminal(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 10000, nil)
	b := seedParticipant(t, lg, "bob", 1000, map[string]model.Holding{
		"MEME": {QuantityHeld: 20, QuantityOnHand: 20},
	})
	c := seedParticipant(t, lg, "carol", 1000, map[string]model.Holding{
		"MEME": {QuantityHeld: 20, QuantityOnHand: 20},
	})

	o, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 10, Total: 5000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := svc.FulfillOrder(ctx, o.ID, b.ID); err != nil {
		t.Fatalf("fulfill order: %v", err)
	}

	carolBefore := reload(t, svc, c.ID)
	if _, err := svc.FulfillOrder(ctx, o.ID, c.ID); !errors.Is(err, exchange.ErrInvalidState) {
		t.Errorf("second fulfill error = %v, want ErrInvalidState", err)
	}
	if _, err := svc.CancelOrder(ctx, o.ID); !errors.Is(err, exchange.ErrInvalidState) {
		t.Errorf("cancel fulfilled error = %v, want ErrInvalidState", err)
	}

	carolAfter := reload(t, svc, c.ID)
	if carolAfter.TotalCash != carolBefore.TotalCash || carolAfter.CashOnHand != carolBefore.CashOnHand {
		t.Errorf("failed fulfill moved carol's cash: %+v -> %+v", carolBefore, carolAfter)
	}
}

// --- Cancellation ---

func TestCancelBuyOrderReleasesCash(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 10000, nil)

	o, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 6, Total: 3000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if reload(t, svc, a.ID).CashOnHand != 7000 {
		t.Fatal("reservation not taken")
	}

	o, err = svc.CancelOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if o.Status != model.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", o.Status)
	}

	a = reload(t, svc, a.ID)
	if a.CashOnHand != 10000 || a.TotalCash != 10000 {
		t.Errorf("cash after cancel = total %d / onHand %d, want full release", a.TotalCash, a.CashOnHand)
	}

	po, err := lg.GetParticipantOrder(ctx, a.ID, o.ID)
	if err != nil {
		t.Fatalf("projection: %v", err)
	}
	if po.Status != model.OrderStatusCancelled {
		t.Errorf("projection status = %s", po.Status)
	}
}

func TestCancelSellOrderReleasesShares(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 1000, map[string]model.Holding{
		"MEME": {QuantityHeld: 20, QuantityOnHand: 20},
	})

	o, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeSell, Symbol: "MEME", Quantity: 8, Total: 4000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := svc.CancelOrder(ctx, o.ID); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	h := reload(t, svc, a.ID).Holding("MEME")
	if h.QuantityOnHand != 20 || h.QuantityHeld != 20 {
		t.Errorf("holding after cancel = %+v, want 20 / 20", h)
	}

	// Cancelled is terminal too.
	if _, err := svc.CancelOrder(ctx, o.ID); !errors.Is(err, exchange.ErrInvalidState) {
		t.Errorf("double cancel error = %v, want ErrInvalidState", err)
	}
}

// --- Conservation ---

func TestTradesConserveCashAndShares(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 10000, map[string]model.Holding{
		"MEME": {QuantityHeld: 5, QuantityOnHand: 5},
	})
	b := seedParticipant(t, lg, "bob", 8000, map[string]model.Holding{
		"MEME": {QuantityHeld: 30, QuantityOnHand: 30},
	})

	sum := func() (cash, shares int64) {
		for _, id := range []string{a.ID, b.ID} {
			p := reload(t, svc, id)
			cash += p.TotalCash
			shares += p.Holding("MEME").QuantityHeld
		}
		return cash, shares
	}
	startCash, startShares := sum()

	o1, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 10, Total: 5000,
	})
	if err != nil {
		t.Fatalf("create buy: %v", err)
	}
	if _, err := svc.FulfillOrder(ctx, o1.ID, b.ID); err != nil {
		t.Fatalf("fulfill buy: %v", err)
	}

	o2, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: b.ID, Type: model.OrderTypeSell, Symbol: "MEME", Quantity: 4, Total: 2400,
	})
	if err != nil {
		t.Fatalf("create sell: %v", err)
	}
	if _, err := svc.FulfillOrder(ctx, o2.ID, a.ID); err != nil {
		t.Fatalf("fulfill sell: %v", err)
	}

	o3, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
		Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 1, Total: 600,
	})
	if err != nil {
		t.Fatalf("create third: %v", err)
	}
	if _, err := svc.CancelOrder(ctx, o3.ID); err != nil {
		t.Fatalf("cancel third: %v", err)
	}

	endCash, endShares := sum()
	if endCash != startCash {
		t.Errorf("total cash drifted: %d -> %d", startCash, endCash)
	}
	if endShares != startShares {
		t.Errorf("total shares drifted: %d -> %d", startShares, endShares)
	}

	// Reservation invariants hold for both sides after the dust settles.
	for _, id := range []string{a.ID, b.ID} {
		p := reload(t, svc, id)
		if p.CashOnHand > p.TotalCash {
			t.Errorf("%s cashOnHand %d > totalCash %d", p.DisplayName, p.CashOnHand, p.TotalCash)
		}
		h := p.Holding("MEME")
		if h.QuantityOnHand > h.QuantityHeld {
			t.Errorf("%s onHand %d > held %d", p.DisplayName, h.QuantityOnHand, h.QuantityHeld)
		}
	}
}

// --- Participants and companies ---

func TestCreateParticipant(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)

	p, err := svc.CreateParticipant(ctx, exchange.CreateParticipantRequest{
		DisplayName: "alice", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("create participant: %v", err)
	}
	if p.Kind != model.KindHuman {
		t.Errorf("kind = %s", p.Kind)
	}
	if p.CashOnHand != p.TotalCash {
		t.Errorf("fresh participant has reservations: %d / %d", p.CashOnHand, p.TotalCash)
	}
	for sym, h := range p.Holdings {
		if h.QuantityOnHand != h.QuantityHeld {
			t.Errorf("fresh holding %s reserved: %+v", sym, h)
		}
	}

	_, err = svc.CreateParticipant(ctx, exchange.CreateParticipantRequest{
		DisplayName: "alice", Email: "other@example.com",
	})
	if !errors.Is(err, exchange.ErrDuplicate) {
		t.Errorf("duplicate display name error = %v, want ErrDuplicate", err)
	}

	_, err = svc.CreateParticipant(ctx, exchange.CreateParticipantRequest{
		DisplayName: "x", Email: "not-an-email",
	})
	if !errors.Is(err, exchange.ErrValidation) {
		t.Errorf("bad signup error = %v, want ErrValidation", err)
	}
}

func TestRemoveParticipantFreesDisplayName(t *testing.T) {
	svc, _ := newTestEnv(t)
	ctx := context.Background()

	p, err := svc.CreateParticipant(ctx, exchange.CreateParticipantRequest{
		DisplayName: "alice", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("create participant: %v", err)
	}
	if err := svc.RemoveParticipant(ctx, p.ID); err != nil {
		t.Fatalf("remove participant: %v", err)
	}
	if _, err := svc.GetParticipant(ctx, p.ID); !errors.Is(err, exchange.ErrNotFound) {
		t.Errorf("get after remove = %v, want ErrNotFound", err)
	}

	// The name is claimable again.
	if _, err := svc.CreateParticipant(ctx, exchange.CreateParticipantRequest{
		DisplayName: "alice", Email: "alice2@example.com",
	}); err != nil {
		t.Errorf("re-claim released name: %v", err)
	}
}

func TestCreateCompanyDuplicateTicker(t *testing.T) {
	svc, _ := newTestEnv(t)
	ctx := context.Background()

	if _, err := svc.CreateCompany(ctx, exchange.CreateCompanyRequest{
		Name: "Meme Inc", Symbol: "MEME", PricePerShare: 500,
	}); err != nil {
		t.Fatalf("create company: %v", err)
	}
	_, err := svc.CreateCompany(ctx, exchange.CreateCompanyRequest{
		Name: "Other Corp", Symbol: "MEME", PricePerShare: 100,
	})
	if !errors.Is(err, exchange.ErrDuplicate) {
		t.Errorf("duplicate ticker error = %v, want ErrDuplicate", err)
	}
}

// --- History ---

func TestOrderHistory(t *testing.T) {
	svc, lg := newTestEnv(t)
	ctx := context.Background()
	seedCompany(t, lg, "MEME", 500)
	a := seedParticipant(t, lg, "alice", 100000, nil)
	b := seedParticipant(t, lg, "bob", 1000, map[string]model.Holding{
		"MEME": {QuantityHeld: 50, QuantityOnHand: 50},
	})

	var created []string
	for i := 0; i < 3; i++ {
		o, err := svc.CreateOrder(ctx, exchange.CreateOrderRequest{
			Participant: a.ID, Type: model.OrderTypeBuy, Symbol: "MEME", Quantity: 1, Total: 500,
		})
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
		created = append(created, o.ID)
	}
	if _, err := svc.FulfillOrder(ctx, created[0], b.ID); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	history, err := svc.OrderHistory(ctx, a.ID, 0)
	if err != nil {
		t.Fatalf("order history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Created.After(history[i-1].Created) {
			t.Errorf("history not newest first at %d", i)
		}
	}

	// The fulfillment shows up in the counterparty's history too.
	bHistory, err := svc.OrderHistory(ctx, b.ID, 0)
	if err != nil {
		t.Fatalf("bob history: %v", err)
	}
	if len(bHistory) != 1 || bHistory[0].ID != created[0] {
		t.Errorf("bob history = %+v", bHistory)
	}
}
