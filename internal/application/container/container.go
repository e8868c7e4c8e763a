package container

import (
	"fmt"
	"time"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/application/service"
	"pricefetcher/internal/infrastructure/config"
	"pricefetcher/internal/infrastructure/provider/cmc"
	"pricefetcher/internal/infrastructure/provider/coingecko"
	"pricefetcher/internal/infrastructure/provider/dexscreener"
	"pricefetcher/internal/infrastructure/storage/postgres"
	"pricefetcher/internal/infrastructure/storage/redis"
	"pricefetcher/internal/infrastructure/storage/sqlite"
	"pricefetcher/internal/infrastructure/tokensource"
)

// Container wires infrastructure into the application services from the
// immutable config, lazily and exactly once per dependency.
type Container struct {
	cfg *config.Config

	cache    port.PriceCache
	tokens   port.TokenSource
	history  port.RunRepository
	resolver *service.Resolver
	runner   *service.Runner
}

func New(cfg *config.Config) (*Container, error) {
	c := &Container{cfg: cfg}

	cache, err := redis.FromURL(cfg.Cache.RedisURL, cfg.Cache.KeyPrefix, cfg.CacheTTL())
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.cache = cache

	switch cfg.Storage.Driver {
	case "postgres":
		repo, err := postgres.New(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		c.history = repo
	case "sqlite":
		repo, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		c.history = repo
	}

	return c, nil
}

func (c *Container) Cache() port.PriceCache { return c.cache }

func (c *Container) TokenSource() port.TokenSource {
	if c.tokens == nil {
		if c.cfg.Tokens.URL != "" {
			c.tokens = tokensource.NewHTTP(c.cfg.Tokens.URL, c.cfg.TokensTimeout())
		} else {
			c.tokens = tokensource.NewFile(c.cfg.Tokens.File)
		}
	}
	return c.tokens
}

// Providers returns the enabled vendor adapters in priority order:
// dexscreener, then coingecko, then cmc.
func (c *Container) Providers() []port.Provider {
	var providers []port.Provider

	if dex := c.cfg.Provider.Dexscreener; dex.Enabled {
		providers = append(providers, dexscreener.New(dexscreener.Config{
			BaseURL:    dex.BaseURL,
			BatchSize:  dex.BatchSize,
			Timeout:    time.Duration(dex.TimeoutSec) * time.Second,
			Retries:    dex.Retries,
			Backoff:    time.Duration(dex.BackoffMS) * time.Millisecond,
			BatchDelay: time.Duration(dex.BatchDelayMS) * time.Millisecond,
		}))
	}
	if cg := c.cfg.Provider.CoinGecko; cg.Enabled {
		providers = append(providers, coingecko.New(coingecko.Config{
			BaseURL:    cg.BaseURL,
			APIKey:     cg.APIKey,
			BatchSize:  cg.BatchSize,
			Timeout:    time.Duration(cg.TimeoutSec) * time.Second,
			Retries:    cg.Retries,
			Backoff:    time.Duration(cg.BackoffMS) * time.Millisecond,
			BatchDelay: time.Duration(cg.BatchDelayMS) * time.Millisecond,
		}))
	}
	if cm := c.cfg.Provider.CMC; cm.Enabled {
		providers = append(providers, cmc.New(cmc.Config{
			BaseURL:     cm.BaseURL,
			Concurrency: cm.Concurrency,
			Timeout:     time.Duration(cm.TimeoutSec) * time.Second,
			Retries:     cm.Retries,
			Backoff:     time.Duration(cm.BackoffMS) * time.Millisecond,
		}))
	}
	return providers
}

func (c *Container) Resolver() *service.Resolver {
	if c.resolver == nil {
		c.resolver = service.NewResolver(service.ResolverDeps{
			Providers:        c.Providers(),
			Cache:            c.cache,
			CacheConcurrency: c.cfg.Cache.Concurrency,
		})
	}
	return c.resolver
}

func (c *Container) Runner() *service.Runner {
	if c.runner == nil {
		c.runner = service.NewRunner(service.RunnerDeps{
			Tokens:   c.TokenSource(),
			Resolver: c.Resolver(),
			Cache:    c.cache,
			History:  c.history,
		})
	}
	return c.runner
}

func (c *Container) Close() error {
	if c.history != nil {
		return c.history.Close()
	}
	return nil
}
