// Package ledger provides typed access to the record families persisted in
// the store: key layout, record encoding, bounded recent-window queries,
// and op builders for the conditional write batches the exchange applies.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/store"
)

// RecentWindow is the bounded most-recent-N window used for market
// signal snapshots.
const RecentWindow = 20

// Ledger is the typed view over a Store.
type Ledger struct {
	store store.Store
}

// New creates a typed ledger over st.
func New(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// Store exposes the underlying store for batch application.
func (l *Ledger) Store() store.Store { return l.store }

// --- Participants ---

func (l *Ledger) GetParticipant(ctx context.Context, id string) (*model.Participant, error) {
	item, err := l.store.Get(ctx, ParticipantKey(id))
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", id, err)
	}

	var p model.Participant
	if err := json.Unmarshal(item.Data, &p); err != nil {
		return nil, fmt.Errorf("decode participant %s: %w", id, err)
	}
	p.Version = item.Version
	return &p, nil
}

// PutParticipant builds a conditional put for the participant record.
func PutParticipant(p *model.Participant, cond store.Cond) store.Op {
	return store.Put(store.Item{Key: ParticipantKey(p.ID), Data: mustMarshal(p)}, cond)
}

// FirstAgent returns the earliest-created agent, or store.ErrNotFound when
// no agents exist.
func (l *Ledger) FirstAgent(ctx context.Context) (*model.Participant, error) {
	return l.agentByCreation(ctx, false)
}

// LastAgent returns the most recently created agent.
func (l *Ledger) LastAgent(ctx context.Context) (*model.Participant, error) {
	return l.agentByCreation(ctx, true)
}

func (l *Ledger) agentByCreation(ctx context.Context, descending bool) (*model.Participant, error) {
	items, err := l.store.Query(ctx, PKParticipant, store.QueryOptions{
		SKPrefix:   string(model.KindAgent) + "#",
		Limit:      1,
		Descending: descending,
	})
	if err != nil {
		return nil, fmt.Errorf("agent scan: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("agent scan: %w", store.ErrNotFound)
	}

	var p model.Participant
	if err := json.Unmarshal(items[0].Data, &p); err != nil {
		return nil, fmt.Errorf("decode agent %s: %w", items[0].SK, err)
	}
	p.Version = items[0].Version
	return &p, nil
}

// --- Companies ---

func (l *Ledger) GetCompany(ctx context.Context, symbol string) (*model.Company, error) {
	item, err := l.store.Get(ctx, CompanyKey(symbol))
	if err != nil {
		return nil, fmt.Errorf("company %s: %w", symbol, err)
	}

	var c model.Company
	if err := json.Unmarshal(item.Data, &c); err != nil {
		return nil, fmt.Errorf("decode company %s: %w", symbol, err)
	}
	c.Version = item.Version
	return &c, nil
}

// ListCompanies returns all companies ordered by ticker symbol.
func (l *Ledger) ListCompanies(ctx context.Context) ([]model.Company, error) {
	items, err := l.store.Query(ctx, PKCompany, store.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	companies := make([]model.Company, 0, len(items))
	for _, item := range items {
		var c model.Company
		if err := json.Unmarshal(item.Data, &c); err != nil {
			return nil, fmt.Errorf("decode company %s: %w", item.SK, err)
		}
		c.Version = item.Version
		companies = append(companies, c)
	}
	return companies, nil
}

// PutCompany builds a conditional put for the company record.
func PutCompany(c *model.Company, cond store.Cond) store.Op {
	return store.Put(store.Item{Key: CompanyKey(c.Symbol), Data: mustMarshal(c)}, cond)
}

// --- Orders ---

func (l *Ledger) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	item, err := l.store.Get(ctx, OrderKey(id))
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}

	var o model.Order
	if err := json.Unmarshal(item.Data, &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", id, err)
	}
	o.Version = item.Version
	return &o, nil
}

// OrdersQuery bounds an order listing.
type OrdersQuery struct {
	Status     model.OrderStatus
	Type       model.OrderType
	Limit      int
	Descending bool
	StartAfter string
}

// Orders lists orders, most filters optional. With Descending and a limit
// this is the bounded recent-window read used by market signals.
func (l *Ledger) Orders(ctx context.Context, q OrdersQuery) ([]model.Order, error) {
	filter := make(map[string]string)
	if q.Status != "" {
		filter[attrOrderStatus] = string(q.Status)
	}
	if q.Type != "" {
		filter[attrOrderType] = string(q.Type)
	}

	items, err := l.store.Query(ctx, PKOrder, store.QueryOptions{
		Filter:     filter,
		Limit:      q.Limit,
		Descending: q.Descending,
		StartAfter: q.StartAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]model.Order, 0, len(items))
	for _, item := range items {
		var o model.Order
		if err := json.Unmarshal(item.Data, &o); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", item.SK, err)
		}
		o.Version = item.Version
		orders = append(orders, o)
	}
	return orders, nil
}

// RecentOrders returns the most-recent-N window for one status, newest
// first.
func (l *Ledger) RecentOrders(ctx context.Context, status model.OrderStatus, typ model.OrderType, limit int) ([]model.Order, error) {
	return l.Orders(ctx, OrdersQuery{Status: status, Type: typ, Limit: limit, Descending: true})
}

// PutOrder builds a conditional put for the order record.
func PutOrder(o *model.Order, cond store.Cond) store.Op {
	return store.Put(store.Item{Key: OrderKey(o.ID), Data: mustMarshal(o)}, cond)
}

// --- Participant-order projections ---

// ParticipantOrders returns the projection rows for one participant,
// newest order first.
func (l *Ledger) ParticipantOrders(ctx context.Context, participantID string, status model.OrderStatus, limit int) ([]model.ParticipantOrder, error) {
	filter := make(map[string]string)
	if status != "" {
		filter[attrOrderStatus] = string(status)
	}

	items, err := l.store.Query(ctx, PKParticipantOrder, store.QueryOptions{
		SKPrefix:   participantID + "#",
		Filter:     filter,
		Limit:      limit,
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("participant orders %s: %w", participantID, err)
	}

	projections := make([]model.ParticipantOrder, 0, len(items))
	for _, item := range items {
		var po model.ParticipantOrder
		if err := json.Unmarshal(item.Data, &po); err != nil {
			return nil, fmt.Errorf("decode participant order %s: %w", item.SK, err)
		}
		po.Version = item.Version
		projections = append(projections, po)
	}
	return projections, nil
}

// GetParticipantOrder loads one projection row.
func (l *Ledger) GetParticipantOrder(ctx context.Context, participantID, orderID string) (*model.ParticipantOrder, error) {
	item, err := l.store.Get(ctx, ParticipantOrderKey(participantID, orderID))
	if err != nil {
		return nil, fmt.Errorf("participant order %s/%s: %w", participantID, orderID, err)
	}

	var po model.ParticipantOrder
	if err := json.Unmarshal(item.Data, &po); err != nil {
		return nil, fmt.Errorf("decode participant order %s: %w", item.SK, err)
	}
	po.Version = item.Version
	return &po, nil
}

// PutParticipantOrder builds a conditional put for a projection row.
func PutParticipantOrder(po *model.ParticipantOrder, cond store.Cond) store.Op {
	return store.Put(store.Item{
		Key:  ParticipantOrderKey(po.Participant, po.OrderID),
		Data: mustMarshal(po),
	}, cond)
}

// --- Agent actions ---

// MostRecentAgentAction returns the latest recorded tick, or
// store.ErrNotFound when no agent has ever acted.
func (l *Ledger) MostRecentAgentAction(ctx context.Context) (*model.AgentAction, error) {
	items, err := l.store.Query(ctx, PKAgentAction, store.QueryOptions{
		Limit:      1,
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("recent agent action: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("recent agent action: %w", store.ErrNotFound)
	}

	var a model.AgentAction
	if err := json.Unmarshal(items[0].Data, &a); err != nil {
		return nil, fmt.Errorf("decode agent action %s: %w", items[0].SK, err)
	}
	return &a, nil
}

// PutAgentAction builds the put recording one completed tick.
func PutAgentAction(a *model.AgentAction) store.Op {
	return store.Put(store.Item{Key: AgentActionKey(a.ID), Data: mustMarshal(a)}, store.IfNotExists())
}

// --- Uniqueness guards ---

// Guard builds a put that fails the whole batch when value is already
// taken in the family (display names, emails, company names, tickers).
func Guard(family, value string) store.Op {
	return store.Put(store.Item{
		Key:  store.Key{PK: family, SK: value},
		Data: mustMarshal(struct{}{}),
	}, store.IfNotExists())
}

// ReleaseGuard builds the delete that frees a guard value.
func ReleaseGuard(family, value string) store.Op {
	return store.Delete(store.Key{PK: family, SK: value}, store.Cond{})
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Domain records are plain structs; marshal cannot fail at runtime.
		panic(fmt.Sprintf("ledger: marshal %T: %v", v, err))
	}
	return data
}
