package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadrouter_backend/internal/allocation"
	"leadrouter_backend/internal/allocation/intake"
	"leadrouter_backend/internal/allocation/ledger"
	"leadrouter_backend/internal/allocation/repository"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/http/router"
	"leadrouter_backend/internal/maps"
	"leadrouter_backend/internal/scheduler"
	"leadrouter_backend/internal/webhook"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/db"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	autoClose, closeScheduler := initAutoCloseScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	geocoderSvc := maps.NewService(cfg.GetGeocoderCountryCodes(), log)
	var geocoder intake.Geocoder
	if cfg.IsGeocoderEnabled() {
		geocoder = geocoderSvc
		log.Info("lead geocoding enabled", "countries", cfg.GetGeocoderCountryCodes())
	}

	repo := repository.New(pool, cfg.GetContractLockTimeout())
	services := allocation.NewServices(repo, cfg, autoClose, geocoder, log)
	allocationModule, err := allocation.NewModule(services, val)
	if err != nil {
		log.Error("failed to initialize allocation module", "error", err)
		panic("failed to initialize allocation module: " + err.Error())
	}
	mapsModule := maps.NewModule(geocoderSvc)

	sourceKeys := webhook.NewRepository(pool)
	webhookModule := webhook.NewModule(webhook.NewService(sourceKeys, services.Intake, log), sourceKeys, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			allocationModule,
			mapsModule,
			webhookModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initAutoCloseScheduler returns an untyped nil scheduler when Redis is not
// configured so the ledger falls back to the periodic sweep.
func initAutoCloseScheduler(cfg config.SchedulerConfig, log *logger.Logger) (ledger.AutoCloseScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; contract auto-close relies on the sweep only")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize auto-close scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
