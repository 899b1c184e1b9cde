// Package app wires the checkout core, its collaborators and the HTTP surface
// from configuration.
package app

import (
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/audit"
	"github.com/noah-isme/toko-checkout/internal/cache"
	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/customer"
	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/inventory"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/notify"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/payment"
	"github.com/noah-isme/toko-checkout/internal/ratelimit"
	"github.com/noah-isme/toko-checkout/internal/report"
	"github.com/noah-isme/toko-checkout/internal/resilience"
	"github.com/noah-isme/toko-checkout/internal/shipping"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// Container holds the services shared by the API, the worker and the tools.
type Container struct {
	Config *config.Config
	Logger zerolog.Logger
	Redis  *redis.Client
	Now    func() time.Time

	Store     store.Store
	Locker    lock.Locker
	Bus       *events.Bus
	Events    events.Reader
	Notify    *notify.Service
	Ledger    *inventory.Ledger
	Accounts  *customer.Accounts
	Shipping  *shipping.Service
	Orders    *order.Lifecycle
	Checkout  *checkout.Service
	Catalog   *catalog.Service
	Reports   *report.Service
	Audit     audit.Service
	RateLimit ratelimit.Limiter

	mailer   common.EmailSender
	provider shipping.Provider
}

// Option customises a Container under construction.
type Option func(*Container)

// WithClock replaces the time source of every service.
func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.Now = now }
}

// WithEmailSender replaces the logging mail sender.
func WithEmailSender(sender common.EmailSender) Option {
	return func(c *Container) { c.mailer = sender }
}

// WithShippingProvider replaces the local tracking-number provider.
func WithShippingProvider(p shipping.Provider) Option {
	return func(c *Container) { c.provider = p }
}

// New builds the container. rdb is required when cfg selects the redis
// backend and is otherwise only used for the report cache when present.
func New(cfg *config.Config, logger zerolog.Logger, rdb *redis.Client, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	c := &Container{Config: cfg, Logger: logger, Redis: rdb, Now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.mailer == nil {
		c.mailer = common.LogEmailSender{Logger: logger.With().Str("component", "email").Logger()}
	}
	if c.provider == nil {
		c.provider = shipping.LocalProvider{}
	}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		if rdb == nil {
			return nil, errors.New("app: redis backend selected without a client")
		}
		c.Store = store.NewRedis(rdb, cfg.RedisPrefix)
		c.Locker = lock.Redis{R: rdb, Prefix: cfg.RedisPrefix}
		c.Events = events.RedisStore{R: rdb, Key: cfg.RedisPrefix + ":events", Max: int64(cfg.EventHistoryMax)}
		c.RateLimit = ratelimit.Redis{Client: rdb, Prefix: cfg.RedisPrefix + ":ratelimit:"}
	default:
		c.Store = store.NewMemory()
		c.Locker = lock.NewLocal()
		c.Events = &events.MemoryStore{Max: cfg.EventHistoryMax}
		c.RateLimit = ratelimit.NewLocal()
	}

	c.wire()
	return c, nil
}

func (c *Container) wire() {
	cfg := c.Config
	component := func(name string) zerolog.Logger {
		return c.Logger.With().Str("component", name).Logger()
	}

	notifiers := []events.Notifier{notify.EmailNotifier{
		Mail:    c.mailer,
		Enabled: cfg.NotifyEmailEnabled,
		From:    cfg.NotifyEmailFrom,
	}}
	if cfg.NotifySMSEnabled {
		notifiers = append(notifiers, notify.SMSNotifier{SMS: notify.LogSMSSender{Logger: component("sms")}})
	}
	var sink events.EventStore
	if s, ok := c.Events.(events.EventStore); ok {
		sink = s
	}
	c.Bus = &events.Bus{Store: sink, Notifiers: notifiers, Now: c.Now}
	c.Notify = &notify.Service{Bus: c.Bus, Suppliers: c.Store, Logger: component("notify")}

	c.Ledger = &inventory.Ledger{Store: c.Store, Notifier: c.Notify, Logger: component("inventory"), Now: c.Now}
	c.Accounts = &customer.Accounts{Store: c.Store, Notifier: c.Notify, Logger: component("customer"), Now: c.Now}

	breaker := resilience.NewBreaker(cfg.ShippingBreakerMinRequests, cfg.ShippingBreakerFailureRatio, cfg.ShippingBreakerOpenFor).
		WithTarget("shipping").
		WithLogger(component("breaker"))
	c.Shipping = &shipping.Service{
		Store:     c.Store,
		Provider:  c.provider,
		Breaker:   breaker,
		Attempts:  3,
		RetryBase: 100 * time.Millisecond,
		Logger:    component("shipping"),
		Now:       c.Now,
	}

	c.Orders = &order.Lifecycle{
		Store:    c.Store,
		Locker:   c.Locker,
		LockTTL:  cfg.LockTTL,
		Stock:    c.Ledger,
		Shipper:  c.Shipping,
		Notifier: c.Notify,
		Refunds:  c.Accounts,
		Logger:   component("order"),
		Now:      c.Now,
	}
	meter, err := obs.NewCheckoutMeter(obs.Meter("checkout"))
	if err != nil {
		c.Logger.Warn().Err(err).Msg("checkout_meter_unavailable")
	}
	c.Checkout = &checkout.Service{
		Store:             c.Store,
		Locker:            c.Locker,
		LockTTL:           cfg.LockTTL,
		Ledger:            c.Ledger,
		Orders:            c.Orders,
		Accounts:          c.Accounts,
		Payments:          payment.StaticValidator{},
		Confirmer:         c.Notify,
		LowStockThreshold: cfg.LowStockThreshold,
		Meter:             meter,
		Logger:            component("checkout"),
		Now:               c.Now,
	}
	c.Catalog = &catalog.Service{Store: c.Store, Logger: component("catalog")}
	c.Reports = &report.Service{
		Store:        c.Store,
		Customers:    c.Accounts,
		Cache:        cache.New(c.Redis, cfg.RedisPrefix+":report", cfg.ReportCacheTTL),
		DefaultRange: cfg.ReportDefaultRangeDays,
		Logger:       component("report"),
		Now:          c.Now,
	}
	c.Audit = audit.Service{Bus: c.Bus, Enabled: cfg.AuditEnabled}
}
