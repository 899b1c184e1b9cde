package obs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// PromotionAppliedTotal counts successful promotion applications per code.
	PromotionAppliedTotal *prometheus.CounterVec
	// LoyaltyPointsTotal counts loyalty points moved, labelled spent/refunded/earned/reversed.
	LoyaltyPointsTotal *prometheus.CounterVec
	// StockAdjustmentsTotal counts units moved through the inventory ledger by kind.
	StockAdjustmentsTotal *prometheus.CounterVec
	// LowStockAlertsTotal counts supplier reorder alerts.
	LowStockAlertsTotal prometheus.Counter
	// OrderTransitionsTotal counts order status changes by target status.
	OrderTransitionsTotal *prometheus.CounterVec
	// NotificationsTotal counts notification deliveries by kind and result.
	NotificationsTotal *prometheus.CounterVec
	// CheckoutDuration records checkout latency in milliseconds.
	CheckoutDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers checkout-domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"}))
		PromotionAppliedTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_applied_total",
			Help:      "Count of promotion codes applied to orders.",
		}, []string{"code"}))
		LoyaltyPointsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_total",
			Help:      "Loyalty points moved by direction.",
		}, []string{"direction"}))
		StockAdjustmentsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjusted_units_total",
			Help:      "Units moved through the inventory ledger by kind.",
		}, []string{"kind"}))
		LowStockAlertsTotal = registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Number of supplier reorder alerts raised.",
		}))
		OrderTransitionsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Count of order status transitions by target status.",
		}, []string{"status"}))
		NotificationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Count of notification deliveries by kind and result.",
		}, []string{"kind", "result"}))
		CheckoutDuration = registerOrReuse(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Checkout latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}))
	})
}

// registerOrReuse registers c, returning the already-registered collector of
// the same shape when another registration won the race.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return c
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
	return c
}

// ObserveCheckout records a checkout outcome.
func ObserveCheckout(result string, millis float64) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
	if CheckoutDuration != nil {
		CheckoutDuration.Observe(millis)
	}
}

// ObservePromotion records an applied promotion code.
func ObservePromotion(code string) {
	if PromotionAppliedTotal != nil {
		PromotionAppliedTotal.WithLabelValues(code).Inc()
	}
}

// ObserveLoyalty records points moved in one direction.
func ObserveLoyalty(direction string, points int) {
	if LoyaltyPointsTotal != nil && points > 0 {
		LoyaltyPointsTotal.WithLabelValues(direction).Add(float64(points))
	}
}

// ObserveStock records units moved by the ledger.
func ObserveStock(kind string, units int) {
	if StockAdjustmentsTotal != nil && units > 0 {
		StockAdjustmentsTotal.WithLabelValues(kind).Add(float64(units))
	}
}

// ObserveLowStockAlert records one supplier alert.
func ObserveLowStockAlert() {
	if LowStockAlertsTotal != nil {
		LowStockAlertsTotal.Inc()
	}
}

// ObserveTransition records an order moving to status.
func ObserveTransition(status string) {
	if OrderTransitionsTotal != nil {
		OrderTransitionsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveNotification records a notification delivery result.
func ObserveNotification(kind, result string) {
	if NotificationsTotal != nil {
		NotificationsTotal.WithLabelValues(kind, result).Inc()
	}
}
