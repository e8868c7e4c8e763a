package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"pricefetcher/internal/domain"
)

type stubRunner struct {
	sum     domain.RunSummary
	results []domain.PriceResult
	last    []domain.PriceResult
	err     error
	runs    int
}

func (s *stubRunner) Run(ctx context.Context) (domain.RunSummary, []domain.PriceResult, error) {
	s.runs++
	return s.sum, s.results, s.err
}

func (s *stubRunner) Last() []domain.PriceResult { return s.last }

func TestHandleRunReturnsSummary(t *testing.T) {
	p := 1.0
	results := []domain.PriceResult{domain.NewPriceResult("eth", "0xaa", "", &p, domain.SourceDexscreener)}
	runner := &stubRunner{sum: domain.Summarize(results), results: results}
	srv := New(":0", runner)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/run", nil))

	if rec.Code != 200 {
		t.Fatalf("status: %d", rec.Code)
	}
	var sum domain.RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Total != 1 || sum.WithPrice != 1 {
		t.Errorf("summary: %+v", sum)
	}
	if sum.BySource["dexscreener"] != 1 {
		t.Errorf("by source: %+v", sum.BySource)
	}
}

func TestHandleRunTokenFailureIs502(t *testing.T) {
	runner := &stubRunner{err: errors.New("sheet unreachable")}
	srv := New(":0", runner)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/run", nil))

	if rec.Code != 502 {
		t.Errorf("status: %d", rec.Code)
	}
}

func TestHandlePricesServesLastWithoutRunning(t *testing.T) {
	p := 2.0
	last := []domain.PriceResult{domain.NewPriceResult("eth", "0xaa", "", &p, domain.SourceCoinGecko)}
	runner := &stubRunner{last: last}
	srv := New(":0", runner)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/prices", nil))

	if rec.Code != 200 {
		t.Fatalf("status: %d", rec.Code)
	}
	if runner.runs != 0 {
		t.Errorf("run forced despite cached results: %d", runner.runs)
	}
	var out []domain.PriceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Source != domain.SourceCoinGecko {
		t.Errorf("results: %+v", out)
	}
}

func TestHandlePricesForcesRunWhenEmpty(t *testing.T) {
	p := 3.0
	results := []domain.PriceResult{domain.NewPriceResult("eth", "0xbb", "", &p, domain.SourceCMC)}
	runner := &stubRunner{results: results}
	srv := New(":0", runner)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/prices", nil))

	if runner.runs != 1 {
		t.Errorf("expected a forced run, got %d", runner.runs)
	}
	if rec.Code != 200 {
		t.Errorf("status: %d", rec.Code)
	}
}

func TestHandlePricesRefreshBypassesLast(t *testing.T) {
	p := 4.0
	runner := &stubRunner{
		last:    []domain.PriceResult{domain.NewPriceResult("eth", "0xold", "", &p, domain.SourceCMC)},
		results: []domain.PriceResult{domain.NewPriceResult("eth", "0xnew", "", &p, domain.SourceCMC)},
	}
	srv := New(":0", runner)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/prices?refresh=1", nil))

	if runner.runs != 1 {
		t.Errorf("refresh did not force a run: %d", runner.runs)
	}
	var out []domain.PriceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Address != "0xnew" {
		t.Errorf("results: %+v", out)
	}
}
