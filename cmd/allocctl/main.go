package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leadrouter_backend/internal/allocation"
	"leadrouter_backend/internal/allocation/intake"
	"leadrouter_backend/internal/allocation/repository"
	"leadrouter_backend/internal/cli"
	"leadrouter_backend/internal/maps"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/db"
	"leadrouter_backend/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(loadEnv).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadEnv(ctx context.Context) (*cli.Env, error) {
	cfg, err := config.LoadWithoutSecrets()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env)

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var geocoder intake.Geocoder
	if cfg.IsGeocoderEnabled() {
		geocoder = maps.NewService(cfg.GetGeocoderCountryCodes(), log)
	}

	repo := repository.New(pool, cfg.GetContractLockTimeout())
	return &cli.Env{
		// Contracts closed here are closed directly, nothing to schedule.
		Services:        allocation.NewServices(repo, cfg, nil, geocoder, log),
		GeocoderEnabled: geocoder != nil,
		Close:           pool.Close,
	}, nil
}
