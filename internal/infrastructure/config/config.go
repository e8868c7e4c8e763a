package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		CronSpec   string `toml:"cron_spec"`
		RunOnStart bool   `toml:"run_on_start"`
	} `toml:"app"`

	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`

	Tokens struct {
		URL        string `toml:"url"`
		File       string `toml:"file"`
		TimeoutSec int    `toml:"timeout_sec"`
	} `toml:"tokens"`

	Cache struct {
		RedisURL    string `toml:"redis_url"`
		KeyPrefix   string `toml:"key_prefix"`
		TTLSec      int    `toml:"ttl_sec"`
		Concurrency int    `toml:"concurrency"`
	} `toml:"cache"`

	Storage struct {
		Driver string `toml:"driver"` // "postgres", "sqlite" or "" (disabled)
		DSN    string `toml:"dsn"`
		Path   string `toml:"path"`
	} `toml:"storage"`

	Provider struct {
		Dexscreener struct {
			Enabled      bool   `toml:"enabled"`
			BaseURL      string `toml:"base_url"`
			BatchSize    int    `toml:"batch_size"`
			TimeoutSec   int    `toml:"timeout_sec"`
			Retries      int    `toml:"retries"`
			BackoffMS    int    `toml:"backoff_ms"`
			BatchDelayMS int    `toml:"batch_delay_ms"`
		} `toml:"dexscreener"`

		CoinGecko struct {
			Enabled      bool   `toml:"enabled"`
			BaseURL      string `toml:"base_url"`
			APIKey       string `toml:"api_key"`
			BatchSize    int    `toml:"batch_size"`
			TimeoutSec   int    `toml:"timeout_sec"`
			Retries      int    `toml:"retries"`
			BackoffMS    int    `toml:"backoff_ms"`
			BatchDelayMS int    `toml:"batch_delay_ms"`
		} `toml:"coingecko"`

		CMC struct {
			Enabled     bool   `toml:"enabled"`
			BaseURL     string `toml:"base_url"`
			Concurrency int    `toml:"concurrency"`
			TimeoutSec  int    `toml:"timeout_sec"`
			Retries     int    `toml:"retries"`
			BackoffMS   int    `toml:"backoff_ms"`
		} `toml:"cmc"`
	} `toml:"provider"`
}

// envOverrides are secrets and endpoints taken from the process environment
// at startup; they win over the file.
type envOverrides struct {
	RedisURL        string `envconfig:"REDIS_URL"`
	CoinGeckoAPIKey string `envconfig:"COINGECKO_API_KEY"`
	TokensURL       string `envconfig:"TOKENS_URL"`
	StorageDSN      string `envconfig:"STORAGE_DSN"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := overlayEnv(&cfg); err != nil {
		return nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.CronSpec == "" {
		cfg.App.CronSpec = "*/10 * * * *"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Tokens.TimeoutSec <= 0 {
		cfg.Tokens.TimeoutSec = 15
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "price"
	}
	if cfg.Cache.TTLSec <= 0 {
		cfg.Cache.TTLSec = 300
	}
	if cfg.Cache.Concurrency <= 0 {
		cfg.Cache.Concurrency = 16
	}

	dex := &cfg.Provider.Dexscreener
	if dex.BatchSize <= 0 || dex.BatchSize > 30 {
		dex.BatchSize = 30
	}
	if dex.TimeoutSec <= 0 {
		dex.TimeoutSec = 10
	}
	if dex.Retries < 0 {
		dex.Retries = 2
	}
	if dex.BackoffMS <= 0 {
		dex.BackoffMS = 500
	}
	if dex.BatchDelayMS <= 0 {
		dex.BatchDelayMS = 250
	}

	cg := &cfg.Provider.CoinGecko
	if cg.BatchSize <= 0 {
		cg.BatchSize = 150
	}
	if cg.TimeoutSec <= 0 {
		cg.TimeoutSec = 12
	}
	if cg.Retries < 0 {
		cg.Retries = 2
	}
	if cg.BackoffMS <= 0 {
		cg.BackoffMS = 500
	}
	if cg.BatchDelayMS <= 0 {
		cg.BatchDelayMS = 300
	}

	cmc := &cfg.Provider.CMC
	if cmc.Concurrency <= 0 {
		cmc.Concurrency = 4
	}
	if cmc.TimeoutSec <= 0 {
		cmc.TimeoutSec = 20
	}
	if cmc.Retries < 0 {
		cmc.Retries = 2
	}
	if cmc.BackoffMS <= 0 {
		cmc.BackoffMS = 500
	}
}

func overlayEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read env overrides: %w", err)
	}
	if env.RedisURL != "" {
		cfg.Cache.RedisURL = env.RedisURL
	}
	if env.CoinGeckoAPIKey != "" {
		cfg.Provider.CoinGecko.APIKey = env.CoinGeckoAPIKey
	}
	if env.TokensURL != "" {
		cfg.Tokens.URL = env.TokensURL
	}
	if env.StorageDSN != "" {
		cfg.Storage.DSN = env.StorageDSN
	}
	return nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Tokens.URL) == "" && strings.TrimSpace(cfg.Tokens.File) == "" {
		return errors.New("tokens.url or tokens.file is required")
	}

	switch cfg.Storage.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("storage.driver %q not supported", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == "postgres" && strings.TrimSpace(cfg.Storage.DSN) == "" {
		return errors.New("storage.dsn empty but driver is postgres")
	}
	if cfg.Storage.Driver == "sqlite" && strings.TrimSpace(cfg.Storage.Path) == "" {
		return errors.New("storage.path empty but driver is sqlite")
	}

	if !cfg.Provider.Dexscreener.Enabled && !cfg.Provider.CoinGecko.Enabled && !cfg.Provider.CMC.Enabled {
		return errors.New("no price providers enabled")
	}
	return nil
}

// Duration helpers for constructor wiring.

func (c *Config) TokensTimeout() time.Duration { return time.Duration(c.Tokens.TimeoutSec) * time.Second }
func (c *Config) CacheTTL() time.Duration      { return time.Duration(c.Cache.TTLSec) * time.Second }
