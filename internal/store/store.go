// Package store defines the ledger persistence interface. Implementations
// include PostgreSQL (source of truth), Redis (read-through cache), and
// in-memory (for testing).
//
// The contract is deliberately narrow: point get, prefix/filtered query,
// and an all-or-nothing conditional batch write. Every multi-entity
// mutation in the exchange is expressed as a single Apply call so that no
// partial application is ever observed.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no item exists at the key.
var ErrNotFound = errors.New("store: item not found")

// Key addresses one item: PK is the record family (entity kind), SK the
// identity within it. SKs sort lexicographically; timestamp-prefixed SKs
// therefore sort by creation time.
type Key struct {
	PK string `json:"pk"`
	SK string `json:"sk"`
}

// Item is one stored record. Version is an optimistic-concurrency token
// managed by the store: it starts at 1 and increments on every write.
type Item struct {
	Key
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// CondKind selects the precondition attached to a write.
type CondKind int

const (
	// CondNone applies the write unconditionally.
	CondNone CondKind = iota
	// CondNotExists requires that no item exists at the key. Used for
	// uniqueness guard rows (display names, emails, tickers).
	CondNotExists
	// CondVersion requires the stored item's version to match. A mismatch
	// means a concurrent writer won the race.
	CondVersion
)

// Cond is a write precondition.
type Cond struct {
	Kind    CondKind
	Version int64
}

// IfNotExists returns the uniqueness-guard precondition.
func IfNotExists() Cond { return Cond{Kind: CondNotExists} }

// IfVersion returns a precondition matching the version an item had when
// it was read.
func IfVersion(v int64) Cond { return Cond{Kind: CondVersion, Version: v} }

// Op is one element of an Apply batch: a conditional put or delete.
type Op struct {
	Put    *Item
	Delete *Key
	Cond   Cond
}

// Put returns a conditional put op.
func Put(item Item, cond Cond) Op {
	return Op{Put: &item, Cond: cond}
}

// Delete returns a conditional delete op.
func Delete(key Key, cond Cond) Op {
	return Op{Delete: &key, Cond: cond}
}

// ConditionError reports the first precondition that failed in an Apply
// batch. The whole batch is discarded when any condition fails.
type ConditionError struct {
	Key  Key
	Cond Cond
}

func (e *ConditionError) Error() string {
	switch e.Cond.Kind {
	case CondNotExists:
		return fmt.Sprintf("store: item %s/%s already exists", e.Key.PK, e.Key.SK)
	case CondVersion:
		return fmt.Sprintf("store: version mismatch on %s/%s (expected %d)", e.Key.PK, e.Key.SK, e.Cond.Version)
	default:
		return fmt.Sprintf("store: condition failed on %s/%s", e.Key.PK, e.Key.SK)
	}
}

// QueryOptions bound and filter a prefix query. Filter matches string
// attributes at the top level of the item's JSON body; it is applied
// before Limit.
type QueryOptions struct {
	SKPrefix   string
	Filter     map[string]string
	Limit      int
	Descending bool
	// StartAfter is an exclusive SK cursor for pagination.
	StartAfter string
}

// Store is the ledger persistence interface.
type Store interface {
	// Get retrieves one item, ErrNotFound if absent.
	Get(ctx context.Context, key Key) (Item, error)

	// Query returns items in one record family ordered by SK.
	Query(ctx context.Context, pk string, opts QueryOptions) ([]Item, error)

	// Apply executes the batch atomically. If any condition fails, no op
	// is applied and the error unwraps to a *ConditionError.
	Apply(ctx context.Context, ops ...Op) error
}
