package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/app"
	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/health"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/resilience"
	"github.com/noah-isme/toko-checkout/internal/seed"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
		if err := resilience.RegisterMetrics(nil); err != nil {
			logger.Error().Err(err).Msg("register breaker metrics")
		}
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
	}

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "toko-checkout-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	container, err := app.New(cfg, logger, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}
	if cfg.SeedDemo {
		if err := seed.Load(ctx, container.Store, time.Now()); err != nil {
			logger.Fatal().Err(err).Msg("seed demo data")
		}
		logger.Info().Msg("demo data loaded")
	}

	opts := app.RouterOptions{Metrics: httpMetrics, Tracing: tracingEnabled}
	if cfg.PprofEnabled {
		opts.Debug = protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           container.Router(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// initRedis connects when a URL is configured. The memory backend runs
// without Redis and only loses the report cache.
func initRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if cfg.StoreBackend == config.BackendRedis {
			logger.Fatal().Err(err).Msg("ping redis")
		}
		logger.Warn().Err(err).Msg("redis unavailable, report cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
