package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/app"
	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/jobs"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	// The sweep reads the shared ledger, so only the redis backend makes sense.
	if cfg.StoreBackend != config.BackendRedis {
		logger.Fatal().Str("store", cfg.StoreBackend).Msg("worker requires STORE_BACKEND=redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	container, err := app.New(cfg, logger, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	job := &jobs.LowStockJob{
		Stock:     container.Ledger,
		Alerts:    container.Notify,
		Locker:    container.Locker,
		LockTTL:   cfg.LockTTL,
		Threshold: cfg.LowStockReportThreshold,
		Logger:    logger,
	}
	if err := job.Start(cfg.LowStockSweepSchedule); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.LowStockSweepSchedule).Msg("schedule low-stock sweep")
	}

	logger.Info().Msg("worker starting")
	<-ctx.Done()
	job.Stop()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}
