package port

import (
	"context"

	"pricefetcher/internal/domain"
)

// PriceCache is the short-TTL result cache keyed by (chain, address). The
// cache is an optimization, never a correctness dependency: callers treat a
// Get error as a miss and a Set error as a no-op.
type PriceCache interface {
	// Get returns the cached result for the key, or (nil, nil) on a miss.
	Get(ctx context.Context, chain, address string) (*domain.PriceResult, error)

	// Set stores the result under its (chain, address) key with the
	// implementation's configured TTL.
	Set(ctx context.Context, res domain.PriceResult) error
}

// NoopCache is the disabled-cache implementation used when no cache backend
// is configured: every Get misses, every Set is a no-op.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, chain, address string) (*domain.PriceResult, error) {
	return nil, nil
}

func (NoopCache) Set(ctx context.Context, res domain.PriceResult) error {
	return nil
}

var _ PriceCache = NoopCache{}
