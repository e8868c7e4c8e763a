package cmc

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
	"pricefetcher/internal/infrastructure/httpx"
)

const (
	defaultBaseURL     = "https://coinmarketcap.com"
	defaultConcurrency = 4
	defaultTimeout     = 20 * time.Second
	defaultRetries     = 2
	defaultBackoff     = 500 * time.Millisecond

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Timeout     time.Duration
	Retries     int
	Backoff     time.Duration
}

// Client resolves CoinMarketCap slugs by fetching the public currency page
// and reading the embedded __NEXT_DATA__ payload. There is no batch
// endpoint, so lookups run one slug at a time under a concurrency cap.
type Client struct {
	http        *httpx.Client
	baseURL     string
	concurrency int
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
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
	return &Client{
		http:        httpx.New(cfg.Timeout, cfg.Retries, cfg.Backoff),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		concurrency: cfg.Concurrency,
	}
}

func (c *Client) Source() domain.Source { return domain.SourceCMC }

func (c *Client) Key(ref domain.TokenRef) (string, bool) {
	return ref.CMCSlug, ref.CMCSlug != ""
}

// ResolveBatch looks up every slug concurrently up to the configured cap.
// A slug whose page cannot be fetched or parsed stays unknown.
func (c *Client) ResolveBatch(ctx context.Context, keys []string) (map[string]port.Quote, error) {
	out := make(map[string]port.Quote, len(keys))
	for _, k := range keys {
		out[k] = port.Quote{}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for _, slug := range dedupe(keys) {
		slug := slug
		g.Go(func() error {
			price, ok := c.lookup(ctx, slug)
			if !ok {
				return nil
			}
			mu.Lock()
			out[slug] = port.Quote{PriceUSD: price, Found: true}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, nil
}

func (c *Client) lookup(ctx context.Context, slug string) (float64, bool) {
	header := http.Header{}
	header.Set("User-Agent", userAgent)
	header.Set("Accept", "text/html")

	body, err := c.http.Get(ctx, c.baseURL+"/currencies/"+slug+"/", header)
	if err != nil {
		log.Debug().Err(err).Str("slug", slug).Msg("cmc page fetch failed")
		return 0, false
	}

	price, ok := ParsePrice(body)
	if !ok {
		log.Debug().Str("slug", slug).Msg("cmc page had no recognizable price")
	}
	return price, ok
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
