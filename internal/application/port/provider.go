package port

import (
	"context"

	"pricefetcher/internal/domain"
)

// Quote is one provider answer for one key. Found=false means the provider
// had no usable price for the key.
type Quote struct {
	PriceUSD float64
	Found    bool
}

// Provider is a vendor price adapter. Implementations own batching limits,
// retries and backoff; an upstream call that exhausts its retries yields
// Found=false for the keys it covered instead of an error. ResolveBatch
// returns an error only when the whole pass is unusable (e.g. context
// cancelled); the pipeline treats that as "no results from this provider".
type Provider interface {
	// Source names the provider in PriceResult provenance.
	Source() domain.Source

	// Key extracts this provider's lookup key from a token. ok=false means
	// the token cannot be submitted to this provider (e.g. missing slug).
	Key(ref domain.TokenRef) (key string, ok bool)

	// ResolveBatch resolves the given keys. The returned map covers every
	// input key, mapped to a quote or Found=false. Input keys are
	// de-duplicated before any upstream call.
	ResolveBatch(ctx context.Context, keys []string) (map[string]Quote, error)
}
