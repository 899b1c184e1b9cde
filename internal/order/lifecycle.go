// Package order owns order creation and the status lifecycle
// pending → shipped/cancelled → delivered.
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/store"
)

var (
	// ErrInvalidTransition is returned when the order's status forbids the operation.
	ErrInvalidTransition = errors.New("order: invalid transition")
	// ErrShipmentFailed is returned when no tracking number could be obtained.
	ErrShipmentFailed = errors.New("order: shipment creation failed")
	// ErrInvalidStatus is returned for unknown status values.
	ErrInvalidStatus = errors.New("order: invalid status")
	// ErrInvalidAdjustment is returned for percentages outside (0, 100].
	ErrInvalidAdjustment = errors.New("order: adjustment percent must be in (0, 100]")
)

// DefaultLockTTL bounds how long an order lock is held.
const DefaultLockTTL = 10 * time.Second

// Draft is an order about to be created.
type Draft struct {
	CustomerID          string
	Lines               []store.Line
	Subtotal            decimal.Decimal
	Tax                 decimal.Decimal
	ShippingCost        decimal.Decimal
	TotalPrice          decimal.Decimal
	PaymentMethod       string
	LoyaltyPointsSpent  int
	LoyaltyPointsEarned int
}

// StockRestorer returns a cancelled order's lines to stock.
type StockRestorer interface {
	Restore(ctx context.Context, order store.Order) error
}

// Shipper books a shipment and returns its tracking number.
type Shipper interface {
	CreateShipment(ctx context.Context, order store.Order) (string, error)
}

// Notifier informs customers about their orders.
type Notifier interface {
	StatusChanged(ctx context.Context, customer store.Customer, order store.Order)
	Cancelled(ctx context.Context, customer store.Customer, order store.Order, reason string)
}

// LoyaltyRefunder undoes the loyalty effects of a cancelled order.
type LoyaltyRefunder interface {
	RefundLoyaltyForOrder(ctx context.Context, customerID string, order store.Order) (int, error)
}

// Lifecycle creates orders and moves them between statuses. Mutations of one
// order are serialised through Locker.
type Lifecycle struct {
	Store    store.Store
	Locker   lock.Locker
	LockTTL  time.Duration
	Stock    StockRestorer
	Shipper  Shipper
	Notifier Notifier
	Refunds  LoyaltyRefunder
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (l *Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *Lifecycle) withOrder(ctx context.Context, id int64, fn func(context.Context) error) error {
	if l.Locker == nil {
		return fn(ctx)
	}
	ttl := l.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return l.Locker.WithLock(ctx, lock.OrderKey(id), ttl, fn)
}

// Create persists a new pending order under the next order ID. Stock is not
// touched.
func (l *Lifecycle) Create(ctx context.Context, d Draft) (store.Order, error) {
	id, err := l.Store.NextOrderID(ctx)
	if err != nil {
		return store.Order{}, fmt.Errorf("order: allocate id: %w", err)
	}
	o := store.Order{
		ID:                  id,
		CustomerID:          d.CustomerID,
		Lines:               append([]store.Line(nil), d.Lines...),
		Status:              store.OrderStatusPending,
		CreatedAt:           l.now(),
		Subtotal:            d.Subtotal,
		Tax:                 d.Tax,
		TotalPrice:          d.TotalPrice,
		ShippingCost:        d.ShippingCost,
		PaymentMethod:       d.PaymentMethod,
		LoyaltyPointsSpent:  d.LoyaltyPointsSpent,
		LoyaltyPointsEarned: d.LoyaltyPointsEarned,
	}
	if err := l.Store.PutOrder(ctx, o); err != nil {
		return store.Order{}, fmt.Errorf("order: save %d: %w", id, err)
	}
	obs.ObserveTransition(string(o.Status))
	l.Logger.Info().Int64("order_id", id).Str("customer_id", d.CustomerID).Str("total", o.TotalPrice.StringFixed(2)).Msg("order_created")
	return o, nil
}

// Get returns the order.
func (l *Lifecycle) Get(ctx context.Context, id int64) (store.Order, error) {
	return l.Store.GetOrder(ctx, id)
}

// Transition sets the order status and notifies the customer. Moving to
// shipped without a tracking number books a shipment first; when booking
// fails the order is left untouched and ErrShipmentFailed is returned.
func (l *Lifecycle) Transition(ctx context.Context, id int64, status store.OrderStatus) (store.Order, error) {
	if !status.Valid() {
		return store.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	ctx, span := obs.Tracer("order").Start(ctx, "order.transition")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id), attribute.String("order.status", string(status)))

	var out store.Order
	err := l.withOrder(ctx, id, func(ctx context.Context) error {
		o, err := l.Store.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if status == store.OrderStatusShipped && o.TrackingNumber == "" {
			if l.Shipper == nil {
				return fmt.Errorf("%w: no shipper configured", ErrShipmentFailed)
			}
			tracking, err := l.Shipper.CreateShipment(ctx, o)
			if err != nil {
				l.Logger.Warn().Err(err).Int64("order_id", id).Msg("order_shipment_failed")
				return fmt.Errorf("%w: %w", ErrShipmentFailed, err)
			}
			o.TrackingNumber = tracking
		}
		previous := o.Status
		o.Status = status
		if err := l.Store.PutOrder(ctx, o); err != nil {
			return err
		}
		out = o
		obs.ObserveTransition(string(status))
		l.Logger.Info().Int64("order_id", id).Str("from", string(previous)).Str("to", string(status)).Msg("order_status_changed")
		if c, ok := l.customer(ctx, o.CustomerID); ok && l.Notifier != nil {
			l.Notifier.StatusChanged(ctx, c, o)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return store.Order{}, err
	}
	return out, nil
}

// ApplyAdjustment reduces a pending order's total by percent.
func (l *Lifecycle) ApplyAdjustment(ctx context.Context, id int64, percent decimal.Decimal, reason string) (store.Order, error) {
	if !percent.IsPositive() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return store.Order{}, fmt.Errorf("%w: got %s", ErrInvalidAdjustment, percent)
	}
	var out store.Order
	err := l.withOrder(ctx, id, func(ctx context.Context) error {
		o, err := l.Store.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != store.OrderStatusPending {
			return fmt.Errorf("%w: cannot adjust %s order %d", ErrInvalidTransition, o.Status, id)
		}
		factor := decimal.NewFromInt(1).Sub(percent.Div(decimal.NewFromInt(100)))
		before := o.TotalPrice
		o.TotalPrice = o.TotalPrice.Mul(factor)
		if err := l.Store.PutOrder(ctx, o); err != nil {
			return err
		}
		out = o
		l.Logger.Info().Int64("order_id", id).Str("percent", percent.String()).Str("reason", reason).
			Str("before", before.StringFixed(2)).Str("after", o.TotalPrice.StringFixed(2)).Msg("order_adjusted")
		return nil
	})
	return out, err
}

// Cancel cancels a pending order, returning its stock and loyalty effects.
// Cancelling a cancelled order succeeds without doing anything; shipped and
// delivered orders cannot be cancelled.
func (l *Lifecycle) Cancel(ctx context.Context, id int64, reason string) (store.Order, error) {
	ctx, span := obs.Tracer("order").Start(ctx, "order.cancel")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	var out store.Order
	err := l.withOrder(ctx, id, func(ctx context.Context) error {
		o, err := l.Store.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		switch o.Status {
		case store.OrderStatusCancelled:
			out = o
			return nil
		case store.OrderStatusShipped, store.OrderStatusDelivered:
			return fmt.Errorf("%w: cannot cancel %s order %d", ErrInvalidTransition, o.Status, id)
		}
		if l.Stock != nil {
			if err := l.Stock.Restore(ctx, o); err != nil {
				return err
			}
		}
		o.Status = store.OrderStatusCancelled
		if err := l.Store.PutOrder(ctx, o); err != nil {
			return err
		}
		out = o
		obs.ObserveTransition(string(o.Status))
		l.Logger.Info().Int64("order_id", id).Str("reason", reason).Msg("order_cancelled")

		c, ok := l.customer(ctx, o.CustomerID)
		if !ok {
			return nil
		}
		if l.Notifier != nil {
			l.Notifier.Cancelled(ctx, c, o, reason)
		}
		if l.Refunds != nil {
			if _, err := l.Refunds.RefundLoyaltyForOrder(ctx, c.ID, o); err != nil {
				l.Logger.Error().Err(err).Int64("order_id", id).Str("customer_id", c.ID).Msg("order_loyalty_refund_failed")
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return store.Order{}, err
	}
	return out, nil
}

// RecordLoyaltyEarned stores the points actually credited for the order,
// which is what a later cancellation reverses.
func (l *Lifecycle) RecordLoyaltyEarned(ctx context.Context, id int64, points int) (store.Order, error) {
	if points < 0 {
		points = 0
	}
	var out store.Order
	err := l.withOrder(ctx, id, func(ctx context.Context) error {
		o, err := l.Store.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		o.LoyaltyPointsEarned = points
		if err := l.Store.PutOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

// ListByCustomer returns the customer's orders sorted by ID.
func (l *Lifecycle) ListByCustomer(ctx context.Context, customerID string) ([]store.Order, error) {
	all, err := l.Store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.Order, 0)
	for _, o := range all {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *Lifecycle) customer(ctx context.Context, id string) (store.Customer, bool) {
	c, err := l.Store.GetCustomer(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Logger.Warn().Err(err).Str("customer_id", id).Msg("order_customer_lookup_failed")
		}
		return store.Customer{}, false
	}
	return c, true
}
