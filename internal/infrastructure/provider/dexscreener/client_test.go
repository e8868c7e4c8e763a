package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func testClient(baseURL string, batchSize int) *Client {
	return New(Config{
		BaseURL:    baseURL,
		BatchSize:  batchSize,
		Timeout:    2 * time.Second,
		Retries:    0,
		Backoff:    time.Millisecond,
		BatchDelay: time.Millisecond,
	})
}

func pairJSON(address, priceUSD string, liquidity, volume, marketCap float64) map[string]any {
	return map[string]any{
		"baseToken": map[string]any{"address": address},
		"priceUsd":  priceUSD,
		"liquidity": map[string]any{"usd": liquidity},
		"volume":    map[string]any{"h24": volume},
		"marketCap": marketCap,
	}
}

func serve(t *testing.T, handler func(addresses []string) []map[string]any) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.URL.Path, "/latest/dex/tokens/")
		mu.Lock()
		requests = append(requests, raw)
		mu.Unlock()
		pairs := handler(strings.Split(raw, ","))
		json.NewEncoder(w).Encode(map[string]any{"pairs": pairs})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestResolveBatchSplitsAtBatchSize(t *testing.T) {
	srv, requests := serve(t, func(addresses []string) []map[string]any {
		var pairs []map[string]any
		for _, a := range addresses {
			pairs = append(pairs, pairJSON(a, "1.0", 1000, 10, 0))
		}
		return pairs
	})

	keys := make([]string, 31)
	for i := range keys {
		keys[i] = fmt.Sprintf("0x%02d", i)
	}

	c := testClient(srv.URL, 30)
	out, err := c.ResolveBatch(context.Background(), keys)
	if err != nil {
		t.Fatal(err)
	}

	if len(*requests) != 2 {
		t.Fatalf("upstream requests: got %d, want 2 (30 + 1)", len(*requests))
	}
	if got := len(strings.Split((*requests)[0], ",")); got != 30 {
		t.Errorf("first batch size: got %d", got)
	}
	if got := len(strings.Split((*requests)[1], ",")); got != 1 {
		t.Errorf("second batch size: got %d", got)
	}
	for _, k := range keys {
		if q, ok := out[k]; !ok || !q.Found {
			t.Errorf("key %s missing or unresolved", k)
		}
	}
}

func TestResolveBatchDeduplicates(t *testing.T) {
	srv, requests := serve(t, func(addresses []string) []map[string]any {
		return []map[string]any{pairJSON("0xaa", "2.5", 100, 1, 0)}
	})

	c := testClient(srv.URL, 30)
	out, err := c.ResolveBatch(context.Background(), []string{"0xaa", "0xaa", "0xaa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(*requests) != 1 || (*requests)[0] != "0xaa" {
		t.Errorf("requests: %v", *requests)
	}
	if q := out["0xaa"]; !q.Found || q.PriceUSD != 2.5 {
		t.Errorf("quote: %+v", q)
	}
}

func TestTieBreakPrefersLiquidityThenVolumeThenCap(t *testing.T) {
	srv, _ := serve(t, func(addresses []string) []map[string]any {
		return []map[string]any{
			pairJSON("0xaa", "1.0", 500, 999, 999),
			pairJSON("0xaa", "2.0", 900, 1, 1), // deepest liquidity wins
			pairJSON("0xaa", "3.0", 900, 0, 0), // same liquidity, lower volume
		}
	})

	c := testClient(srv.URL, 30)
	out, err := c.ResolveBatch(context.Background(), []string{"0xaa"})
	if err != nil {
		t.Fatal(err)
	}
	if q := out["0xaa"]; q.PriceUSD != 2.0 {
		t.Errorf("price: got %v, want 2.0 (highest liquidity, then volume)", q.PriceUSD)
	}
}

func TestTieBreakFallsBackToCap(t *testing.T) {
	pairs := []pair{
		{PriceUSD: "1.0"},
		{PriceUSD: "2.0"},
	}
	pairs[0].Liquidity.USD, pairs[1].Liquidity.USD = 100, 100
	pairs[0].Volume.H24, pairs[1].Volume.H24 = 5, 5
	pairs[0].MarketCap, pairs[1].FDV = 10, 20 // second has no mcap, larger FDV

	if got := bestPair(pairs); got.PriceUSD != "2.0" {
		t.Errorf("bestPair picked %q, want the higher FDV pair", got.PriceUSD)
	}
}

func TestIndividualFallbackWhenGroupedBatchEmpty(t *testing.T) {
	srv, requests := serve(t, func(addresses []string) []map[string]any {
		// grouped lookup returns nothing; single lookups work
		if len(addresses) > 1 {
			return nil
		}
		if addresses[0] == "0xbb" {
			return []map[string]any{pairJSON("0xbb", "4.0", 100, 1, 0)}
		}
		return nil
	})

	c := testClient(srv.URL, 30)
	out, err := c.ResolveBatch(context.Background(), []string{"0xaa", "0xbb"})
	if err != nil {
		t.Fatal(err)
	}
	// 1 grouped + 2 individual
	if len(*requests) != 3 {
		t.Errorf("requests: %v", *requests)
	}
	if q := out["0xbb"]; !q.Found || q.PriceUSD != 4.0 {
		t.Errorf("0xbb quote: %+v", q)
	}
	if q := out["0xaa"]; q.Found {
		t.Errorf("0xaa should stay unknown: %+v", q)
	}
}

func TestResolveBatchTotalMapOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 30)
	out, err := c.ResolveBatch(context.Background(), []string{"0xaa", "0xbb"})
	if err != nil {
		t.Fatalf("upstream failure must not raise out of the adapter: %v", err)
	}
	for _, k := range []string{"0xaa", "0xbb"} {
		q, ok := out[k]
		if !ok {
			t.Errorf("key %s missing from output map", k)
		}
		if q.Found {
			t.Errorf("key %s resolved from a failing upstream", k)
		}
	}
}

func TestUnparsablePriceIsUnknown(t *testing.T) {
	srv, _ := serve(t, func(addresses []string) []map[string]any {
		return []map[string]any{pairJSON("0xaa", "n/a", 100, 1, 0)}
	})

	c := testClient(srv.URL, 30)
	out, err := c.ResolveBatch(context.Background(), []string{"0xaa"})
	if err != nil {
		t.Fatal(err)
	}
	if out["0xaa"].Found {
		t.Errorf("unparsable price treated as known: %+v", out["0xaa"])
	}
}
