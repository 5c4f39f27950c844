// Package model defines the core domain records shared across the exchange.
// All monetary amounts are integer cents, never float64.
package model

import (
	"time"
)

// OrderType is the direction of an order from the originator's view.
type OrderType string

const (
	OrderTypeBuy  OrderType = "buy"
	OrderTypeSell OrderType = "sell"
)

// OrderStatus is the lifecycle state of an order. An order is mutated
// exactly once after creation: open → fulfilled or open → cancelled.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParticipantKind distinguishes human accounts from autonomous agents.
type ParticipantKind string

const (
	KindHuman ParticipantKind = "HUMAN"
	KindAgent ParticipantKind = "AI"
)

// Holding is one share position. QuantityOnHand is the unreserved portion:
// the gap to QuantityHeld is committed to the participant's open sell orders.
type Holding struct {
	QuantityHeld   int64 `json:"quantityHeld"`
	QuantityOnHand int64 `json:"quantityOnHand"`
}

// RiskProfile holds the personality weights driving agent utility scores.
type RiskProfile struct {
	Fomo         int `json:"fomo"`
	LossAversion int `json:"lossAversion"`
	Collector    int `json:"collector"`
	Wildcard     int `json:"wildcard"`
}

// Participant is a human or agent account holding cash and share positions.
// CashOnHand ≤ TotalCash always; the gap is cash reserved in the
// participant's open buy orders.
type Participant struct {
	ID          string             `json:"id"`
	Kind        ParticipantKind    `json:"kind"`
	DisplayName string             `json:"displayName"`
	Email       string             `json:"email,omitempty"`
	TotalCash   int64              `json:"totalCash"`
	CashOnHand  int64              `json:"cashOnHand"`
	Holdings    map[string]Holding `json:"holdings"`
	Created     time.Time          `json:"created"`

	// Agent-only fields. NextAgent closes the creation-ordered ring used
	// for round-robin scheduling; it points at the agent itself when the
	// ring has a single member.
	NextAgent string      `json:"nextAgent,omitempty"`
	Profile   RiskProfile `json:"profile"`

	// Version is the store's optimistic-concurrency token. Not part of
	// the record body.
	Version int64 `json:"-"`
}

// IsAgent reports whether the participant acts autonomously.
func (p *Participant) IsAgent() bool { return p.Kind == KindAgent }

// Holding returns the participant's position in symbol, zero if none.
func (p *Participant) Holding(symbol string) Holding { return p.Holdings[symbol] }

// Company is a listed fictional company. Prices are integer cents and are
// mutated only by the fulfillment engine.
type Company struct {
	Symbol                string    `json:"tickerSymbol"`
	Name                  string    `json:"name"`
	Description           string    `json:"description,omitempty"`
	CurrentPricePerShare  int64     `json:"currentPricePerShare"`
	PreviousPricePerShare int64     `json:"previousPricePerShare"`
	Created               time.Time `json:"created"`

	Version int64 `json:"-"`
}

// Order is a request to trade Quantity shares of Symbol for Total cents.
// Exactly one of Buyer/Seller equals OriginatingParticipant while open; the
// other is empty until fulfillment fills it with the completing participant.
type Order struct {
	ID                     string      `json:"id"`
	Created                time.Time   `json:"created"`
	Symbol                 string      `json:"tickerSymbol"`
	Type                   OrderType   `json:"orderType"`
	Status                 OrderStatus `json:"orderStatus"`
	Quantity               int64       `json:"quantity"`
	Total                  int64       `json:"total"`
	Buyer                  string      `json:"buyer"`
	Seller                 string      `json:"seller"`
	OriginatingParticipant string      `json:"originatingParticipant"`

	Version int64 `json:"-"`
}

// ParticipantOrder is the denormalized per-participant order projection:
// one row per (participant, order) pair so order history never scans the
// full order family. A second row is written at fulfillment time for the
// completing participant.
type ParticipantOrder struct {
	Participant string      `json:"participant"`
	OrderID     string      `json:"orderId"`
	Status      OrderStatus `json:"orderStatus"`
	Type        OrderType   `json:"orderType"`
	Symbol      string      `json:"tickerSymbol"`

	Version int64 `json:"-"`
}

// AgentAction records one scheduler tick. The most recent action is the
// scheduler's only persisted state: NextAgent names the agent that acts on
// the following tick.
type AgentAction struct {
	ID          string    `json:"id"`
	Created     time.Time `json:"created"`
	ActingAgent string    `json:"actingAgent"`
	NextAgent   string    `json:"nextAgent"`
	Action      string    `json:"action"`
	OrderID     string    `json:"orderId,omitempty"`
	Symbol      string    `json:"tickerSymbol,omitempty"`
}
