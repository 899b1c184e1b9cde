package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-checkout/internal/audit"
	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/customer"
	"github.com/noah-isme/toko-checkout/internal/health"
	"github.com/noah-isme/toko-checkout/internal/inventory"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/ratelimit"
	"github.com/noah-isme/toko-checkout/internal/report"
	"github.com/noah-isme/toko-checkout/internal/security"
)

// RouterOptions toggles the observability middleware.
type RouterOptions struct {
	Metrics *obs.HTTPMetrics
	Tracing bool
	// Debug is mounted at /debug/pprof when set.
	Debug http.Handler
}

// Router builds the HTTP surface over the container's services.
func (c *Container) Router(opts RouterOptions) http.Handler {
	cfg := c.Config
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if opts.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: c.Logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Total-Count", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if opts.Debug != nil {
		r.Mount("/debug/pprof", opts.Debug)
	}

	probes := map[string]health.Probe{}
	if c.Redis != nil {
		probes["redis"] = health.RedisProbe(c.Redis)
	}
	healthHandler := health.Handler{Probes: probes}
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	throttle := ratelimit.Handler{
		Limiter: c.RateLimit,
		Window:  cfg.CheckoutRateLimitWindow,
		Max:     cfg.CheckoutRateLimitMax,
		Logger:  c.Logger,
	}
	recorder := audit.HTTPRecorder{Service: c.Audit, Logger: c.Logger}

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(g chi.Router) {
			g.Use(throttle.Middleware)
			(&checkout.Handler{Svc: c.Checkout}).Routes(g)
		})
		v.Group(func(g chi.Router) {
			g.Use(recorder.Middleware(audit.HTTPConfig{ResourceIDParam: "id"}))
			catalog.NewHandler(c.Catalog).Routes(g)
			(&inventory.AdminHandler{Ledger: c.Ledger, ReportThreshold: cfg.LowStockReportThreshold}).Routes(g)
			(&order.Handler{Lifecycle: c.Orders}).Routes(g)
			(&customer.Handler{Accounts: c.Accounts, Campaigns: c.Notify}).Routes(g)
		})
		(&report.Handler{Svc: c.Reports}).Routes(v)
		audit.Handler{Events: c.Events}.Routes(v)
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
