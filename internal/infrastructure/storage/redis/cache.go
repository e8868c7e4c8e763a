package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
)

// Cache is the short-TTL price cache on Redis: one JSON value per
// (chain, address) key, expiring after the configured TTL.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "price"
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

// FromURL builds a cache from a redis URL, or the no-op cache when the URL
// is empty (cache disabled).
func FromURL(rawURL, prefix string, ttl time.Duration) (port.PriceCache, error) {
	if rawURL == "" {
		return port.NoopCache{}, nil
	}
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(opt), prefix, ttl), nil
}

func (c *Cache) key(chain, address string) string {
	return c.prefix + ":" + chain + ":" + address
}

func (c *Cache) Get(ctx context.Context, chain, address string) (*domain.PriceResult, error) {
	val, err := c.rdb.Get(ctx, c.key(chain, address)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res domain.PriceResult
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		return nil, fmt.Errorf("malformed cache entry: %w", err)
	}
	return &res, nil
}

func (c *Cache) Set(ctx context.Context, res domain.PriceResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(res.Chain, res.Address), b, c.ttl).Err()
}

var _ port.PriceCache = (*Cache)(nil)
