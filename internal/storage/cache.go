package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/redis/go-redis/v9"
)

const (
	historyCacheKeyPrefix = "txledger:history:"
	defaultCacheTTL       = 5 * time.Minute
)

// CacheConfig configures the optional redis history cache. An empty Addr disables it.
type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedStore serves FindByAddress from redis when possible. Inserts drop the
// cached history of both parties; a racing reader can repopulate a stale list,
// which then lives at most TTL.
type CachedStore struct {
	*Store
	cache *redis.Client
	ttl   time.Duration
}

// NewCachedStore wraps base. Without an address it is a passthrough.
func NewCachedStore(base *Store, cfg CacheConfig) (*CachedStore, error) {
	if base == nil {
		return nil, errors.New("base store is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedStore{Store: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedStore{Store: base, cache: client, ttl: cfg.TTL}, nil
}

// Enabled reports whether a redis client is attached.
func (c *CachedStore) Enabled() bool {
	return c.cache != nil
}

// Upsert writes through to the store and invalidates cached histories on insert.
func (c *CachedStore) Upsert(ctx context.Context, e ledger.Entry) (ledger.Entry, bool, error) {
	stored, inserted, err := c.Store.Upsert(ctx, e)
	if err != nil {
		return ledger.Entry{}, false, err
	}
	if inserted {
		c.invalidate(ctx, stored.From, stored.To)
	}
	return stored, inserted, nil
}

// FindByAddress reads through the cache.
func (c *CachedStore) FindByAddress(ctx context.Context, address string) ([]ledger.Entry, error) {
	if c.cache == nil {
		return c.Store.FindByAddress(ctx, address)
	}
	key := historyKey(address)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
		var entries []ledger.Entry
		if err := json.Unmarshal([]byte(cached), &entries); err == nil && entries != nil {
			return entries, nil
		}
	}

	entries, err := c.Store.FindByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return entries, nil
	}
	_ = c.cache.Set(ctx, key, payload, c.ttl).Err()
	return entries, nil
}

// PingCache checks redis connectivity; a disabled cache is always healthy.
func (c *CachedStore) PingCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Ping(ctx).Err()
}

// Close closes the redis client and the underlying store.
func (c *CachedStore) Close() error {
	var cacheErr error
	if c.cache != nil {
		cacheErr = c.cache.Close()
	}
	return errors.Join(cacheErr, c.Store.Close())
}

func (c *CachedStore) invalidate(ctx context.Context, addrs ...string) {
	if c.cache == nil {
		return
	}
	keys := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != "" {
			keys = append(keys, historyKey(a))
		}
	}
	if len(keys) > 0 {
		_ = c.cache.Del(ctx, keys...).Err()
	}
}

func historyKey(address string) string {
	return historyCacheKeyPrefix + strings.ToLower(address)
}
