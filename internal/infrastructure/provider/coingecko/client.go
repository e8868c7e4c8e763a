package coingecko

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
	"pricefetcher/internal/infrastructure/httpx"
)

const (
	defaultBaseURL    = "https://api.coingecko.com/api/v3"
	defaultBatchSize  = 150
	defaultTimeout    = 12 * time.Second
	defaultRetries    = 2
	defaultBackoff    = 500 * time.Millisecond
	defaultBatchDelay = 300 * time.Millisecond
)

type Config struct {
	BaseURL    string
	APIKey     string
	BatchSize  int
	Timeout    time.Duration
	Retries    int
	Backoff    time.Duration
	BatchDelay time.Duration
}

// Client resolves CoinGecko slugs via the simple/price endpoint. Lookup is
// by slug identity only; tokens without a coingeckoId never reach this
// adapter.
type Client struct {
	http       *httpx.Client
	baseURL    string
	apiKey     string
	batchSize  int
	batchDelay time.Duration
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.BatchSize <= 0 {
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
		apiKey:     cfg.APIKey,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
	}
}

func (c *Client) Source() domain.Source { return domain.SourceCoinGecko }

func (c *Client) Key(ref domain.TokenRef) (string, bool) {
	return ref.CoinGeckoID, ref.CoinGeckoID != ""
}

// ResolveBatch fetches USD prices for the given slugs in sequential
// sub-batches with an inter-batch delay. Slugs absent from a response stay
// unknown; a failed sub-batch leaves its slugs unknown.
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
			log.Debug().Err(err).Int("slugs", len(sub)).Msg("coingecko batch failed")
			continue
		}
		for _, k := range sub {
			if usd, ok := prices[k]; ok {
				out[k] = port.Quote{PriceUSD: usd, Found: true}
			}
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, slugs []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(slugs, ","))
	q.Set("vs_currencies", "usd")
	reqURL := c.baseURL + "/simple/price?" + q.Encode()

	var header http.Header
	if c.apiKey != "" {
		header = http.Header{}
		header.Set("x-cg-demo-api-key", c.apiKey)
	}

	var resp map[string]map[string]float64
	if err := c.http.GetJSON(ctx, reqURL, header, &resp); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(resp))
	for slug, quotes := range resp {
		if usd, ok := quotes["usd"]; ok && usd >= 0 {
			prices[slug] = usd
		}
	}
	return prices, nil
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
