package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/transfer-core/internal/api"
	"github.com/example/transfer-core/internal/bank"
	"github.com/example/transfer-core/internal/config"
	"github.com/example/transfer-core/internal/rates"
	"github.com/example/transfer-core/internal/security"
	"github.com/example/transfer-core/internal/store"
	"github.com/example/transfer-core/pkg/audit"
)

// accountStore is the persistence surface main needs: the engine's
// transactional contract plus the handlers' read/create surface.
type accountStore interface {
	bank.Store
	api.AccountStore
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var accounts accountStore
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		accounts = pg
	case "sqlite":
		sq, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite store", "error", err)
			os.Exit(1)
		}
		defer sq.Close()
		accounts = sq
	}

	registry := prometheus.NewRegistry()
	rateMetrics := rates.NewMetrics(registry)

	provider := rates.NewHTTPProvider(cfg.RateAPIURL, cfg.RateAPIKey, nil)
	rateCache := rates.NewCache(provider, rates.Config{
		TTL:              cfg.RateCacheTTL,
		MaxAttempts:      cfg.RateRetryMax,
		RetryBackoff:     cfg.RateRetryBackoff,
		BreakerThreshold: cfg.RateBreakerThreshold,
		BreakerCooldown:  cfg.RateBreakerCooldown,
	}, logger, rateMetrics)

	auditor := audit.NewChain()
	engine := bank.NewEngine(accounts, rateCache, logger, auditor)

	deps := api.Dependencies{
		Logger:       logger,
		Transfers:    engine,
		Accounts:     accounts,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MaxBodyBytes: cfg.MaxBodyBytes,
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		deps.RateLimiter = &security.RedisTokenBucket{
			Redis:      redisClient,
			Prefix:     "transfer_api",
			Capacity:   cfg.RateLimitCapacity,
			RefillRate: float64(cfg.RateLimitRefillPerSec),
		}
	}

	router, err := api.NewRouter(deps)
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("transfer api listening", "addr", cfg.ListenAddr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
