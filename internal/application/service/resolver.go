package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
)

const defaultCacheConcurrency = 16

type ResolverDeps struct {
	// Providers in strict priority order; each pass consumes only the
	// tokens still unresolved by earlier passes.
	Providers []port.Provider
	Cache     port.PriceCache

	// CacheConcurrency bounds parallel cache reads per run.
	CacheConcurrency int
}

// Resolver turns an ordered token list into an equally ordered, fully
// populated price list: cache pass first, then one pass per provider over
// the shrinking pending set, then unknown fill for whatever is left.
type Resolver struct {
	deps ResolverDeps
}

func NewResolver(deps ResolverDeps) *Resolver {
	if deps.Cache == nil {
		deps.Cache = port.NoopCache{}
	}
	if deps.CacheConcurrency <= 0 {
		deps.CacheConcurrency = defaultCacheConcurrency
	}
	return &Resolver{deps: deps}
}

// Resolve prices every token. The output list has the same length and order
// as refs: out[i] corresponds to refs[i]. The second return marks which
// slots were served from cache; the caller uses it to write back only fresh
// results. Resolve never fails: total provider failure yields unknown
// results, not an error.
func (r *Resolver) Resolve(ctx context.Context, refs []domain.TokenRef) ([]domain.PriceResult, []bool) {
	out := make([]domain.PriceResult, len(refs))
	cached := make([]bool, len(refs))

	pending := r.cachePass(ctx, refs, out, cached)

	for _, p := range r.deps.Providers {
		if len(pending) == 0 {
			break
		}
		pending = r.providerPass(ctx, p, refs, out, pending)
	}

	for _, i := range pending {
		out[i] = domain.NewPriceResult(refs[i].Chain, refs[i].Address, refs[i].Symbol, nil, domain.SourceUnknown)
	}
	return out, cached
}

// cachePass issues bounded-concurrency cache reads for all refs, fills hits
// into out, and returns the indices still pending in input order. A cache
// error counts as a miss.
func (r *Resolver) cachePass(ctx context.Context, refs []domain.TokenRef, out []domain.PriceResult, cached []bool) []int {
	hits := make([]*domain.PriceResult, len(refs))

	g := new(errgroup.Group)
	g.SetLimit(r.deps.CacheConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			res, err := r.deps.Cache.Get(ctx, ref.Chain, ref.Address)
			if err != nil {
				log.Debug().Err(err).Str("chain", ref.Chain).Str("address", ref.Address).Msg("cache read failed, treating as miss")
				return nil
			}
			hits[i] = res
			return nil
		})
	}
	_ = g.Wait()

	pending := make([]int, 0, len(refs))
	for i := range refs {
		if hits[i] != nil {
			out[i] = *hits[i]
			cached[i] = true
			continue
		}
		pending = append(pending, i)
	}
	return pending
}

// providerPass runs one provider over the pending set and returns the
// indices it did not resolve. Duplicate keys cost one upstream lookup;
// tokens without a key for this provider are skipped. A failed batch call
// leaves the pending set unchanged.
func (r *Resolver) providerPass(ctx context.Context, p port.Provider, refs []domain.TokenRef, out []domain.PriceResult, pending []int) []int {
	keyFor := make(map[int]string, len(pending))
	seen := make(map[string]struct{}, len(pending))
	keys := make([]string, 0, len(pending))
	skipped := 0

	for _, i := range pending {
		k, ok := p.Key(refs[i])
		if !ok {
			skipped++
			continue
		}
		keyFor[i] = k
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	if skipped > 0 {
		log.Debug().Str("provider", string(p.Source())).Int("skipped", skipped).Msg("tokens without provider key skipped")
	}
	if len(keys) == 0 {
		return pending
	}

	quotes, err := p.ResolveBatch(ctx, keys)
	if err != nil {
		log.Warn().Err(err).Str("provider", string(p.Source())).Int("keys", len(keys)).Msg("provider pass failed")
		return pending
	}

	next := make([]int, 0, len(pending))
	resolved := 0
	for _, i := range pending {
		if k, ok := keyFor[i]; ok {
			if q, found := quotes[k]; found && q.Found {
				out[i] = domain.NewPriceResult(refs[i].Chain, refs[i].Address, refs[i].Symbol, &q.PriceUSD, p.Source())
				resolved++
				continue
			}
		}
		next = append(next, i)
	}

	log.Debug().
		Str("provider", string(p.Source())).
		Int("keys", len(keys)).
		Int("resolved", resolved).
		Int("pending", len(next)).
		Msg("provider pass done")
	return next
}
