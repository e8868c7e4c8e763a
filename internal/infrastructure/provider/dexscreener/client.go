package dexscreener

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
	"pricefetcher/internal/infrastructure/httpx"
)

const (
	defaultBaseURL    = "https://api.dexscreener.com"
	defaultBatchSize  = 30
	defaultTimeout    = 10 * time.Second
	defaultRetries    = 2
	defaultBackoff    = 500 * time.Millisecond
	defaultBatchDelay = 250 * time.Millisecond

	// upstream hard limit on addresses per request
	maxBatchSize = 30
)

type Config struct {
	BaseURL    string
	BatchSize  int
	Timeout    time.Duration
	Retries    int
	Backoff    time.Duration
	BatchDelay time.Duration
}

// Client resolves token addresses against the Dexscreener token endpoint.
// Addresses are looked up in comma-joined batches; when one token trades in
// several pairs the pair with the deepest USD liquidity wins.
type Client struct {
	http       *httpx.Client
	baseURL    string
	batchSize  int
	batchDelay time.Duration
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatchSize {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = defaultBatchDelay
	}
	return &Client{
		http:       httpx.New(cfg.Timeout, cfg.Retries, cfg.Backoff),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
	}
}

func (c *Client) Source() domain.Source { return domain.SourceDexscreener }

func (c *Client) Key(ref domain.TokenRef) (string, bool) {
	return ref.Address, ref.Address != ""
}

type pair struct {
	BaseToken struct {
		Address string `json:"address"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
}

type tokensResponse struct {
	Pairs []pair `json:"pairs"`
}

// ResolveBatch looks up every address, splitting into sub-batches of at most
// the configured size with a delay between upstream requests. A sub-batch
// whose grouped response yields zero usable prices is retried one address at
// a time before its keys are given up as unknown.
func (c *Client) ResolveBatch(ctx context.Context, keys []string) (map[string]port.Quote, error) {
	out := make(map[string]port.Quote, len(keys))
	for _, k := range keys {
		out[k] = port.Quote{}
	}

	uniq := dedupe(keys)
	for start := 0; start < len(uniq); start += c.batchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.batchDelay):
			}
		}
		end := start + c.batchSize
		if end > len(uniq) {
			end = len(uniq)
		}
		sub := uniq[start:end]

		prices, err := c.fetch(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Debug().Err(err).Int("addresses", len(sub)).Msg("dexscreener batch failed")
			continue
		}
		if len(prices) == 0 {
			prices = c.fetchIndividually(ctx, sub)
		}

		for _, k := range sub {
			if p, ok := prices[strings.ToLower(k)]; ok {
				out[k] = port.Quote{PriceUSD: p, Found: true}
			}
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, addresses []string) (map[string]float64, error) {
	url := c.baseURL + "/latest/dex/tokens/" + strings.Join(addresses, ",")

	var resp tokensResponse
	if err := c.http.GetJSON(ctx, url, nil, &resp); err != nil {
		return nil, err
	}

	byToken := make(map[string][]pair)
	for _, p := range resp.Pairs {
		addr := strings.ToLower(p.BaseToken.Address)
		if addr == "" {
			continue
		}
		byToken[addr] = append(byToken[addr], p)
	}

	prices := make(map[string]float64, len(byToken))
	for addr, pairs := range byToken {
		best := bestPair(pairs)
		price, err := strconv.ParseFloat(best.PriceUSD, 64)
		if err != nil || price < 0 {
			continue
		}
		prices[addr] = price
	}
	return prices, nil
}

// fetchIndividually is the last-resort path for a sub-batch whose grouped
// response was empty: one request per address, errors ignored per address.
func (c *Client) fetchIndividually(ctx context.Context, addresses []string) map[string]float64 {
	prices := make(map[string]float64)
	for i, addr := range addresses {
		if i > 0 {
			select {
			case <-ctx.Done():
				return prices
			case <-time.After(c.batchDelay):
			}
		}
		single, err := c.fetch(ctx, []string{addr})
		if err != nil {
			log.Debug().Err(err).Str("address", addr).Msg("dexscreener single lookup failed")
			continue
		}
		for k, v := range single {
			prices[k] = v
		}
	}
	return prices
}

// bestPair picks the pair to price from: highest USD liquidity, ties broken
// by 24h volume, further ties by market cap (FDV when market cap is absent).
func bestPair(pairs []pair) pair {
	best := pairs[0]
	for _, p := range pairs[1:] {
		switch {
		case p.Liquidity.USD != best.Liquidity.USD:
			if p.Liquidity.USD > best.Liquidity.USD {
				best = p
			}
		case p.Volume.H24 != best.Volume.H24:
			if p.Volume.H24 > best.Volume.H24 {
				best = p
			}
		case capOf(p) > capOf(best):
			best = p
		}
	}
	return best
}

func capOf(p pair) float64 {
	if p.MarketCap > 0 {
		return p.MarketCap
	}
	return p.FDV
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

var _ port.Provider = (*Client)(nil)
