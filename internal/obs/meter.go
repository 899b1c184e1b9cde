package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Meter returns the OpenTelemetry meter for a component. It reports through
// whatever MeterProvider is installed globally.
func Meter(component string) metric.Meter {
	return otel.Meter(TracerName + "/" + component)
}

// CheckoutMeter mirrors the checkout Prometheus counters as OpenTelemetry
// instruments. A nil CheckoutMeter records nothing.
type CheckoutMeter struct {
	outcomes metric.Int64Counter
	points   metric.Int64Counter
}

// NewCheckoutMeter creates the checkout instruments on m.
func NewCheckoutMeter(m metric.Meter) (*CheckoutMeter, error) {
	outcomes, err := m.Int64Counter("checkout.outcomes",
		metric.WithDescription("Checkout attempts by result"),
		metric.WithUnit("{checkout}"))
	if err != nil {
		return nil, err
	}
	points, err := m.Int64Counter("checkout.loyalty_points",
		metric.WithDescription("Loyalty points moved by checkout"),
		metric.WithUnit("{point}"))
	if err != nil {
		return nil, err
	}
	return &CheckoutMeter{outcomes: outcomes, points: points}, nil
}

// Outcome counts one checkout with the given result.
func (c *CheckoutMeter) Outcome(ctx context.Context, result string) {
	if c == nil {
		return
	}
	c.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Points counts loyalty points spent or earned by a checkout.
func (c *CheckoutMeter) Points(ctx context.Context, direction string, points int) {
	if c == nil || points <= 0 {
		return
	}
	c.points.Add(ctx, int64(points), metric.WithAttributes(attribute.String("direction", direction)))
}
