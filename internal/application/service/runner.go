package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
)

type RunnerDeps struct {
	Tokens   port.TokenSource
	Resolver *Resolver
	Cache    port.PriceCache

	// History is optional; nil disables run persistence.
	History port.RunRepository
}

// Runner coordinates one full resolution run: load tokens, resolve, write
// fresh results back to the cache, persist the run, and keep the last
// result set in memory for the read endpoint. Runs are serialized; no two
// runs share mutable state.
type Runner struct {
	deps RunnerDeps

	runMu  sync.Mutex
	lastMu sync.RWMutex
	last   []domain.PriceResult
}

func NewRunner(deps RunnerDeps) *Runner {
	if deps.Cache == nil {
		deps.Cache = port.NoopCache{}
	}
	return &Runner{deps: deps}
}

// Run executes one resolution pass. The only failure is being unable to
// obtain the token list; provider and cache trouble degrade results, not
// the run.
func (r *Runner) Run(ctx context.Context) (domain.RunSummary, []domain.PriceResult, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	started := time.Now().UTC()

	refs, err := r.deps.Tokens.Load(ctx)
	if err != nil {
		return domain.RunSummary{}, nil, fmt.Errorf("load token list: %w", err)
	}

	results, cached := r.deps.Resolver.Resolve(ctx, refs)

	// Cache write-back for freshly resolved entries only; cache hits keep
	// their original timestamp and are not rewritten.
	written := 0
	for i, res := range results {
		if cached[i] || !res.Known() {
			continue
		}
		if err := r.deps.Cache.Set(ctx, res); err != nil {
			log.Debug().Err(err).Str("chain", res.Chain).Str("address", res.Address).Msg("cache write failed")
			continue
		}
		written++
	}

	sum := domain.Summarize(results)

	if r.deps.History != nil {
		if err := r.deps.History.InsertRun(ctx, started, sum, results); err != nil {
			log.Warn().Err(err).Msg("run history write failed")
		}
	}

	r.lastMu.Lock()
	r.last = results
	r.lastMu.Unlock()

	log.Info().
		Int("total", sum.Total).
		Int("with_price", sum.WithPrice).
		Int("nulls", sum.Nulls).
		Int("cache_writes", written).
		Interface("by_source", sum.BySource).
		Dur("took", time.Since(started)).
		Msg("price run finished")

	return sum, results, nil
}

// Last returns the result set of the most recent completed run, or nil if
// no run has completed yet.
func (r *Runner) Last() []domain.PriceResult {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	return r.last
}
