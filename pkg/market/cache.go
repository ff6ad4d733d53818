package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elonfeng/feedrank/pkg/insight"
)

const (
	defaultCachePrefix = "feedrank:market:"
	defaultCacheTTL    = 5 * time.Minute
)

// Cache keeps recently fetched ticker contexts in redis so instances share
// provider quota.
type Cache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCache wraps a redis client. Non-positive ttl uses the default.
func NewCache(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

// DialCache connects to redisURL and verifies the connection.
func DialCache(ctx context.Context, redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewCache(rdb, "", ttl), nil
}

func (c *Cache) key(ticker string) string {
	return c.prefix + ticker
}

// Get returns a cached context. Misses and redis errors both report false.
func (c *Cache) Get(ctx context.Context, ticker string) (insight.TickerContext, bool) {
	data, err := c.rdb.Get(ctx, c.key(ticker)).Bytes()
	if err != nil {
		return insight.TickerContext{}, false
	}
	var tc insight.TickerContext
	if err := json.Unmarshal(data, &tc); err != nil {
		return insight.TickerContext{}, false
	}
	return tc, true
}

// Set stores a context for the cache TTL.
func (c *Cache) Set(ctx context.Context, ticker string, tc insight.TickerContext) error {
	data, err := json.Marshal(tc)
	if err != nil {
		return fmt.Errorf("marshal ticker context: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(ticker), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", ticker, err)
	}
	return nil
}

// Invalidate drops cached contexts for tickers.
func (c *Cache) Invalidate(ctx context.Context, tickers ...string) error {
	if len(tickers) == 0 {
		return nil
	}
	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = c.key(t)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
