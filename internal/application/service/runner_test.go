package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
)

type fakeTokenSource struct {
	refs []domain.TokenRef
	err  error
}

func (f *fakeTokenSource) Load(ctx context.Context) ([]domain.TokenRef, error) {
	return f.refs, f.err
}

type fakeHistory struct {
	mu      sync.Mutex
	inserts int
	lastSum domain.RunSummary
	err     error
}

func (f *fakeHistory) InsertRun(ctx context.Context, at time.Time, sum domain.RunSummary, results []domain.PriceResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	f.lastSum = sum
	return f.err
}

func (f *fakeHistory) Close() error { return nil }

func TestRunnerWritesOnlyFreshResults(t *testing.T) {
	cache := newFakeCache()
	p := 5.0
	cache.data["eth:0xcached"] = domain.NewPriceResult("eth", "0xcached", "", &p, domain.SourceDexscreener)

	dex := &fakeProvider{source: domain.SourceDexscreener, prices: map[string]float64{"0xfresh": 1}}
	src := &fakeTokenSource{refs: []domain.TokenRef{
		{Chain: "eth", Address: "0xcached"},
		{Chain: "eth", Address: "0xfresh"},
		{Chain: "eth", Address: "0xmiss"},
	}}

	runner := NewRunner(RunnerDeps{
		Tokens:   src,
		Resolver: NewResolver(ResolverDeps{Providers: []port.Provider{dex}, Cache: cache}),
		Cache:    cache,
	})

	sum, results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 3 || sum.WithPrice != 2 || sum.Nulls != 1 {
		t.Errorf("summary: %+v", sum)
	}

	// one write for the fresh hit; cached and unknown entries untouched
	if cache.sets != 1 {
		t.Errorf("cache writes: got %d, want 1", cache.sets)
	}
	if _, ok := cache.data["eth:0xfresh"]; !ok {
		t.Error("fresh result not written to cache")
	}
	if _, ok := cache.data["eth:0xmiss"]; ok {
		t.Error("unknown result written to cache")
	}

	last := runner.Last()
	if len(last) != len(results) {
		t.Errorf("Last(): got %d results, want %d", len(last), len(results))
	}
}

func TestRunnerTokenLoadFailureIsFatal(t *testing.T) {
	src := &fakeTokenSource{err: errors.New("sheet unreachable")}
	runner := NewRunner(RunnerDeps{
		Tokens:   src,
		Resolver: NewResolver(ResolverDeps{}),
	})

	_, _, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when token list is unavailable")
	}
	if runner.Last() != nil {
		t.Error("failed run must not publish results")
	}
}

func TestRunnerPersistsHistory(t *testing.T) {
	hist := &fakeHistory{}
	dex := &fakeProvider{source: domain.SourceDexscreener, prices: map[string]float64{"0xaa": 1}}
	src := &fakeTokenSource{refs: []domain.TokenRef{{Chain: "eth", Address: "0xaa"}}}

	runner := NewRunner(RunnerDeps{
		Tokens:   src,
		Resolver: NewResolver(ResolverDeps{Providers: []port.Provider{dex}}),
		History:  hist,
	})

	if _, _, err := runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hist.inserts != 1 || hist.lastSum.WithPrice != 1 {
		t.Errorf("history: inserts=%d sum=%+v", hist.inserts, hist.lastSum)
	}
}

func TestRunnerHistoryFailureIsNonFatal(t *testing.T) {
	hist := &fakeHistory{err: errors.New("db down")}
	src := &fakeTokenSource{refs: []domain.TokenRef{{Chain: "eth", Address: "0xaa"}}}

	runner := NewRunner(RunnerDeps{
		Tokens:   src,
		Resolver: NewResolver(ResolverDeps{}),
		History:  hist,
	})

	if _, _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("history failure must not fail the run: %v", err)
	}
}
