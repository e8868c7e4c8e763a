package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"pricefetcher/internal/application/container"
	"pricefetcher/internal/infrastructure/config"
	"pricefetcher/internal/infrastructure/logger"
	"pricefetcher/internal/infrastructure/scheduler"
	"pricefetcher/internal/interfaces/httpapi"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	logLevel := flag.String("log-level", "info", "zerolog level")
	flag.Parse()

	logger.Setup(*logLevel)

	// optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("container init failed")
	}
	defer c.Close()

	runner := c.Runner()

	log.Info().
		Str("config", *configPath).
		Str("cron", cfg.App.CronSpec).
		Str("addr", cfg.HTTP.Addr).
		Bool("cache", cfg.Cache.RedisURL != "").
		Str("storage", cfg.Storage.Driver).
		Int("providers", len(c.Providers())).
		Msg("pricefetcher started")

	if cfg.App.RunOnStart {
		if _, _, err := runner.Run(ctx); err != nil {
			log.Error().Err(err).Msg("initial price run failed")
		}
	}

	sched := scheduler.New(cfg.App.CronSpec, func(runCtx context.Context) {
		if _, _, err := runner.Run(runCtx); err != nil {
			log.Error().Err(err).Msg("scheduled price run failed")
		}
	})
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.App.CronSpec).Msg("scheduler start failed")
	}
	defer sched.Stop()

	srv := httpapi.New(cfg.HTTP.Addr, runner)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("http server exited")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}
