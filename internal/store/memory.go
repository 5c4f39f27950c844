package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]Item // pk → sk → item
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]map[string]Item)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key.PK][key.SK]
	if !ok {
		return Item{}, fmt.Errorf("get %s/%s: %w", key.PK, key.SK, ErrNotFound)
	}
	return copyItem(item), nil
}

func (s *MemoryStore) Query(_ context.Context, pk string, opts QueryOptions) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	family := s.items[pk]
	sks := make([]string, 0, len(family))
	for sk := range family {
		if opts.SKPrefix != "" && !strings.HasPrefix(sk, opts.SKPrefix) {
			continue
		}
		sks = append(sks, sk)
	}

	if opts.Descending {
		sort.Sort(sort.Reverse(sort.StringSlice(sks)))
	} else {
		sort.Strings(sks)
	}

	var result []Item
	for _, sk := range sks {
		if opts.StartAfter != "" {
			if opts.Descending && sk >= opts.StartAfter {
				continue
			}
			if !opts.Descending && sk <= opts.StartAfter {
				continue
			}
		}

		item := family[sk]
		if !matchesFilter(item, opts.Filter) {
			continue
		}

		result = append(result, copyItem(item))
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) Apply(_ context.Context, ops ...Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every condition before touching anything so a failure
	// leaves the store unchanged.
	for _, op := range ops {
		key := opKey(op)
		existing, exists := s.items[key.PK][key.SK]
		if err := checkCond(key, op.Cond, existing.Version, exists); err != nil {
			return err
		}
	}

	for _, op := range ops {
		switch {
		case op.Put != nil:
			item := copyItem(*op.Put)
			prev, exists := s.items[item.PK][item.SK]
			if exists {
				item.Version = prev.Version + 1
			} else {
				item.Version = 1
			}
			if s.items[item.PK] == nil {
				s.items[item.PK] = make(map[string]Item)
			}
			s.items[item.PK][item.SK] = item

		case op.Delete != nil:
			delete(s.items[op.Delete.PK], op.Delete.SK)
		}
	}
	return nil
}

func opKey(op Op) Key {
	if op.Put != nil {
		return op.Put.Key
	}
	return *op.Delete
}

func checkCond(key Key, cond Cond, version int64, exists bool) error {
	switch cond.Kind {
	case CondNotExists:
		if exists {
			return fmt.Errorf("apply %s/%s: %w", key.PK, key.SK, &ConditionError{Key: key, Cond: cond})
		}
	case CondVersion:
		if !exists || version != cond.Version {
			return fmt.Errorf("apply %s/%s: %w", key.PK, key.SK, &ConditionError{Key: key, Cond: cond})
		}
	}
	return nil
}

func matchesFilter(item Item, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}

	var attrs map[string]any
	if err := json.Unmarshal(item.Data, &attrs); err != nil {
		return false
	}
	for name, want := range filter {
		got, ok := attrs[name].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func copyItem(item Item) Item {
	if item.Data != nil {
		data := make(json.RawMessage, len(item.Data))
		copy(data, item.Data)
		item.Data = data
	}
	return item
}
