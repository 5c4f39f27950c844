package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/metrics"
	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/store"
)

// CreateOrderRequest is the payload for placing a buy or sell order.
type CreateOrderRequest struct {
	Participant string          `json:"participant" validate:"required"`
	Type        model.OrderType `json:"orderType" validate:"required,oneof=buy sell"`
	Symbol      string          `json:"tickerSymbol" validate:"required"`
	Quantity    int64           `json:"quantity" validate:"required,gt=0"`
	Total       int64           `json:"total" validate:"required,gt=0"`
}

// CreateOrder places an open order and reserves the originator's resources:
// a buy reserves Total from CashOnHand, a sell reserves Quantity from the
// symbol's QuantityOnHand. The order, its owner projection, and the updated
// participant commit in one conditional batch.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	p, err := s.ledger.GetParticipant(ctx, req.Participant)
	if err != nil {
		return nil, Translate(err)
	}
	if _, err := s.ledger.GetCompany(ctx, req.Symbol); err != nil {
		return nil, Translate(err)
	}

	switch req.Type {
	case model.OrderTypeBuy:
		if p.CashOnHand < req.Total {
			return nil, fmt.Errorf("%w: need %d, have %d on hand", ErrInsufficientFunds, req.Total, p.CashOnHand)
		}
		p.CashOnHand -= req.Total
	case model.OrderTypeSell:
		h := p.Holding(req.Symbol)
		if h.QuantityOnHand < req.Quantity {
			return nil, fmt.Errorf("%w: need %d, have %d on hand", ErrInsufficientShares, req.Quantity, h.QuantityOnHand)
		}
		h.QuantityOnHand -= req.Quantity
		p.Holdings[req.Symbol] = h
	}

	now := time.Now().UTC()
	o := &model.Order{
		ID:                     ledger.NewOrderID(now),
		Created:                now,
		Symbol:                 req.Symbol,
		Type:                   req.Type,
		Status:                 model.OrderStatusOpen,
		Quantity:               req.Quantity,
		Total:                  req.Total,
		OriginatingParticipant: p.ID,
	}
	if req.Type == model.OrderTypeBuy {
		o.Buyer = p.ID
	} else {
		o.Seller = p.ID
	}

	po := &model.ParticipantOrder{
		Participant: p.ID,
		OrderID:     o.ID,
		Status:      model.OrderStatusOpen,
		Type:        o.Type,
		Symbol:      o.Symbol,
	}

	err = s.ledger.Store().Apply(ctx,
		ledger.PutOrder(o, store.IfNotExists()),
		ledger.PutParticipantOrder(po, store.IfNotExists()),
		ledger.PutParticipant(p, store.IfVersion(p.Version)),
	)
	if err != nil {
		return nil, Translate(err)
	}

	metrics.OrdersCreated.WithLabelValues(string(o.Type)).Inc()
	slog.Info("order created",
		"order", o.ID, "type", o.Type, "symbol", o.Symbol,
		"quantity", o.Quantity, "total", o.Total, "participant", p.ID)
	s.broadcast(WSMessage{
		Type:          "order_created",
		OrderID:       o.ID,
		Symbol:        o.Symbol,
		OrderType:     o.Type,
		Quantity:      o.Quantity,
		Total:         o.Total,
		PricePerShare: PricePerShare(o.Total, o.Quantity),
		Buyer:         o.Buyer,
		Seller:        o.Seller,
	})
	return o, nil
}

// FulfillOrder completes an open order with completingID as the counterparty.
// The trade settles double-entry: the buyer pays Total and receives Quantity
// shares, the seller receives Total and gives up Quantity shares. Whichever
// side originated the order already reserved its leg at creation, so only
// the completing side's on-hand figures move here. The company's share price
// rotates to Total/Quantity in the same batch.
func (s *Service) FulfillOrder(ctx context.Context, orderID, completingID string) (*model.Order, error) {
	o, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, Translate(err)
	}
	if o.Status != model.OrderStatusOpen {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidState, o.ID, o.Status)
	}
	if completingID == o.OriginatingParticipant {
		return nil, fmt.Errorf("%w: %s originated order %s", ErrSelfTrade, completingID, o.ID)
	}

	originator, err := s.ledger.GetParticipant(ctx, o.OriginatingParticipant)
	if err != nil {
		return nil, Translate(err)
	}
	completing, err := s.ledger.GetParticipant(ctx, completingID)
	if err != nil {
		return nil, Translate(err)
	}

	switch o.Type {
	case model.OrderTypeBuy:
		if completing.Holding(o.Symbol).QuantityOnHand < o.Quantity {
			return nil, fmt.Errorf("%w: %s holds %d %s on hand, order needs %d",
				ErrInsufficientShares, completing.ID, completing.Holding(o.Symbol).QuantityOnHand, o.Symbol, o.Quantity)
		}
	case model.OrderTypeSell:
		if completing.CashOnHand < o.Total {
			return nil, fmt.Errorf("%w: %s has %d on hand, order needs %d",
				ErrInsufficientFunds, completing.ID, completing.CashOnHand, o.Total)
		}
	}

	var buyer, seller *model.Participant
	if o.Type == model.OrderTypeBuy {
		buyer, seller = originator, completing
		o.Seller = completing.ID
	} else {
		buyer, seller = completing, originator
		o.Buyer = completing.ID
	}
	settle(buyer, seller, o, completing.ID)
	o.Status = model.OrderStatusFulfilled

	company, err := s.ledger.GetCompany(ctx, o.Symbol)
	if err != nil {
		return nil, Translate(err)
	}
	company.PreviousPricePerShare = company.CurrentPricePerShare
	company.CurrentPricePerShare = PricePerShare(o.Total, o.Quantity)

	origPO, err := s.ledger.GetParticipantOrder(ctx, originator.ID, o.ID)
	if err != nil {
		return nil, Translate(err)
	}
	origPO.Status = model.OrderStatusFulfilled

	newPO := &model.ParticipantOrder{
		Participant: completing.ID,
		OrderID:     o.ID,
		Status:      model.OrderStatusFulfilled,
		Type:        o.Type,
		Symbol:      o.Symbol,
	}

	err = s.ledger.Store().Apply(ctx,
		ledger.PutCompany(company, store.IfVersion(company.Version)),
		ledger.PutOrder(o, store.IfVersion(o.Version)),
		ledger.PutParticipantOrder(origPO, store.IfVersion(origPO.Version)),
		ledger.PutParticipantOrder(newPO, store.IfNotExists()),
		ledger.PutParticipant(buyer, store.IfVersion(buyer.Version)),
		ledger.PutParticipant(seller, store.IfVersion(seller.Version)),
	)
	if err != nil {
		return nil, Translate(err)
	}

	metrics.OrdersFulfilled.WithLabelValues(string(o.Type)).Inc()
	metrics.TradeVolume.WithLabelValues(o.Symbol).Add(float64(o.Quantity))
	slog.Info("order fulfilled",
		"order", o.ID, "type", o.Type, "symbol", o.Symbol,
		"quantity", o.Quantity, "total", o.Total,
		"buyer", o.Buyer, "seller", o.Seller,
		"pricePerShare", company.CurrentPricePerShare)
	s.broadcast(WSMessage{
		Type:          "order_fulfilled",
		OrderID:       o.ID,
		Symbol:        o.Symbol,
		OrderType:     o.Type,
		Quantity:      o.Quantity,
		Total:         o.Total,
		PricePerShare: company.CurrentPricePerShare,
		Buyer:         o.Buyer,
		Seller:        o.Seller,
	})
	return o, nil
}

// settle applies the double-entry cash and share movement for a trade.
// The originating side's on-hand leg was already deducted when the order
// was created, so only the completing side's on-hand figures change.
func settle(buyer, seller *model.Participant, o *model.Order, completingID string) {
	buyer.TotalCash -= o.Total
	if buyer.ID == completingID {
		buyer.CashOnHand -= o.Total
	}
	if buyer.Holdings == nil {
		buyer.Holdings = make(map[string]model.Holding)
	}
	bh := buyer.Holdings[o.Symbol]
	bh.QuantityHeld += o.Quantity
	bh.QuantityOnHand += o.Quantity
	buyer.Holdings[o.Symbol] = bh

	seller.TotalCash += o.Total
	seller.CashOnHand += o.Total
	sh := seller.Holdings[o.Symbol]
	sh.QuantityHeld -= o.Quantity
	if seller.ID == completingID {
		sh.QuantityOnHand -= o.Quantity
	}
	seller.Holdings[o.Symbol] = sh
}

// CancelOrder cancels an open order and returns the reserved cash or shares
// to the originator.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, Translate(err)
	}
	if o.Status != model.OrderStatusOpen {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidState, o.ID, o.Status)
	}

	p, err := s.ledger.GetParticipant(ctx, o.OriginatingParticipant)
	if err != nil {
		return nil, Translate(err)
	}
	switch o.Type {
	case model.OrderTypeBuy:
		p.CashOnHand += o.Total
	case model.OrderTypeSell:
		h := p.Holdings[o.Symbol]
		h.QuantityOnHand += o.Quantity
		p.Holdings[o.Symbol] = h
	}

	o.Status = model.OrderStatusCancelled

	po, err := s.ledger.GetParticipantOrder(ctx, p.ID, o.ID)
	if err != nil {
		return nil, Translate(err)
	}
	po.Status = model.OrderStatusCancelled

	err = s.ledger.Store().Apply(ctx,
		ledger.PutOrder(o, store.IfVersion(o.Version)),
		ledger.PutParticipantOrder(po, store.IfVersion(po.Version)),
		ledger.PutParticipant(p, store.IfVersion(p.Version)),
	)
	if err != nil {
		return nil, Translate(err)
	}

	metrics.OrdersCancelled.Inc()
	slog.Info("order cancelled", "order", o.ID, "type", o.Type, "symbol", o.Symbol)
	return o, nil
}

// Orders lists orders filtered by status and type.
func (s *Service) Orders(ctx context.Context, q ledger.OrdersQuery) ([]model.Order, error) {
	return s.ledger.Orders(ctx, q)
}

// OrderHistory returns a participant's orders, newest first, hydrated from
// the participant-order projections.
func (s *Service) OrderHistory(ctx context.Context, participantID string, limit int) ([]model.Order, error) {
	projections, err := s.ledger.ParticipantOrders(ctx, participantID, "", limit)
	if err != nil {
		return nil, err
	}

	orders := make([]model.Order, len(projections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, po := range projections {
		i, po := i, po
		g.Go(func() error {
			o, err := s.ledger.GetOrder(gctx, po.OrderID)
			if err != nil {
				return Translate(err)
			}
			orders[i] = *o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Projections sort by the owner's composite key, not by time.
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Created.After(orders[j].Created)
	})
	return orders, nil
}

func (s *Service) broadcast(msg WSMessage) {
	if s.hub != nil {
		s.hub.Broadcast(msg)
	}
}
