package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for point gets. Apply goes to the primary store and invalidates
// every touched key; queries pass through since their windows are small
// and freshness-sensitive.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

func (s *CachedStore) Get(ctx context.Context, key Key) (Item, error) {
	data, err := s.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		var item Item
		if json.Unmarshal(data, &item) == nil {
			return item, nil
		}
	}

	item, err := s.primary.Get(ctx, key)
	if err != nil {
		return Item{}, err
	}

	if data, err := json.Marshal(item); err == nil {
		s.rdb.Set(ctx, cacheKey(key), data, s.ttl)
	}
	return item, nil
}

func (s *CachedStore) Query(ctx context.Context, pk string, opts QueryOptions) ([]Item, error) {
	return s.primary.Query(ctx, pk, opts)
}

func (s *CachedStore) Apply(ctx context.Context, ops ...Op) error {
	if err := s.primary.Apply(ctx, ops...); err != nil {
		return err
	}

	// Invalidate after commit; next read re-populates.
	keys := make([]string, 0, len(ops))
	for _, op := range ops {
		keys = append(keys, cacheKey(opKey(op)))
	}
	s.rdb.Del(ctx, keys...)
	return nil
}

func cacheKey(key Key) string {
	return fmt.Sprintf("item:%s#%s", key.PK, key.SK)
}
