// Command seeder loads the demo catalog, customers, suppliers and promotions
// into the Redis store.
package main

import (
	"context"
	"flag"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/seed"
	"github.com/noah-isme/toko-checkout/internal/store"
)

func main() {
	flush := flag.Bool("flush", false, "delete every key under REDIS_PREFIX before seeding")
	flag.Parse()

	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()
	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	if *flush {
		removed, err := flushPrefix(ctx, client, cfg.RedisPrefix+":*")
		if err != nil {
			logger.Fatal().Err(err).Msg("flush prefix")
		}
		logger.Info().Int("keys", removed).Msg("prefix flushed")
	}

	if err := seed.Load(ctx, store.NewRedis(client, cfg.RedisPrefix), time.Now()); err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().
		Int("products", len(seed.Products())).
		Int("customers", len(seed.Customers())).
		Int("suppliers", len(seed.Suppliers())).
		Msg("seeding completed")
}

func flushPrefix(ctx context.Context, client *redis.Client, pattern string) (int, error) {
	removed := 0
	iter := client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}
