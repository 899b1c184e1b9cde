// Package checkout turns a cart request into a priced, taxed, paid and
// stocked order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/customer"
	"github.com/noah-isme/toko-checkout/internal/discount"
	"github.com/noah-isme/toko-checkout/internal/inventory"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/payment"
	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/shipping"
	"github.com/noah-isme/toko-checkout/internal/store"
	"github.com/noah-isme/toko-checkout/internal/tax"
)

var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("checkout: invalid request")
	// ErrCustomerNotFound is returned when the customer does not resolve.
	ErrCustomerNotFound = errors.New("checkout: customer not found")
)

// DefaultLockTTL bounds how long checkout holds its locks.
const DefaultLockTTL = 30 * time.Second

// Item is one requested cart line.
type Item struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// Request is a checkout submission.
type Request struct {
	CustomerID     string       `json:"customerId" validate:"required"`
	Items          []Item       `json:"items" validate:"required,min=1,dive"`
	ShippingMethod string       `json:"shippingMethod" validate:"required"`
	Payment        payment.Info `json:"payment"`
	PromotionCode  string       `json:"promotionCode"`
}

// Result is a completed checkout.
type Result struct {
	Order        store.Order           `json:"order"`
	Subtotal     decimal.Decimal       `json:"subtotal"`
	Discounted   decimal.Decimal       `json:"discountedSubtotal"`
	Tax          decimal.Decimal       `json:"tax"`
	Shipping     decimal.Decimal       `json:"shipping"`
	Total        decimal.Decimal       `json:"total"`
	Breakdown    []pricing.StageResult `json:"breakdown"`
	PointsSpent  int                   `json:"pointsSpent"`
	PointsEarned int                   `json:"pointsEarned"`
	Upgraded     bool                  `json:"upgraded"`
	LowStock     []string              `json:"lowStock,omitempty"`
}

// Confirmer sends the order confirmation.
type Confirmer interface {
	OrderConfirmed(ctx context.Context, customer store.Customer, order store.Order)
}

// Service coordinates one checkout at a time per customer and per product.
type Service struct {
	Store             store.Store
	Locker            lock.Locker
	LockTTL           time.Duration
	Ledger            *inventory.Ledger
	Orders            *order.Lifecycle
	Accounts          *customer.Accounts
	Payments          payment.Validator
	Confirmer         Confirmer
	BulkTiers         []discount.BulkTier
	LowStockThreshold int
	Meter             *obs.CheckoutMeter
	Logger            zerolog.Logger
	Now               func() time.Time
}

// Validate checks the request shape.
func (r Request) Validate() error {
	if err := common.Validator().Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// PlaceOrder runs the checkout. Nothing is persisted unless the request
// passes validation, stock check and payment; points spent by the loyalty
// stage are credited back when a later step fails.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	ctx, span := obs.Tracer("checkout").Start(ctx, "checkout.place_order")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", req.CustomerID), attribute.Int("checkout.items", len(req.Items)))

	res, err := s.placeOrder(ctx, req)
	elapsed := float64(time.Since(started).Milliseconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		obs.ObserveCheckout(outcome(err), elapsed)
		s.Meter.Outcome(ctx, outcome(err))
		s.Logger.Warn().Err(err).Str("customer_id", req.CustomerID).Str("result", outcome(err)).Msg("checkout_failed")
		return Result{}, err
	}
	span.SetAttributes(attribute.Int64("order.id", res.Order.ID))
	obs.ObserveCheckout("success", elapsed)
	s.Meter.Outcome(ctx, "success")
	s.Meter.Points(ctx, "spent", res.PointsSpent)
	s.Meter.Points(ctx, "earned", res.PointsEarned)
	s.Logger.Info().Int64("order_id", res.Order.ID).Str("customer_id", req.CustomerID).
		Str("total", res.Total.StringFixed(2)).Int("points_spent", res.PointsSpent).Msg("checkout_completed")
	return res, nil
}

func outcome(err error) string {
	var rejected *payment.RejectedError
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, shipping.ErrInvalidMethod):
		return "invalid"
	case errors.Is(err, ErrCustomerNotFound), errors.Is(err, inventory.ErrProductNotFound):
		return "not_found"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "out_of_stock"
	case errors.As(err, &rejected):
		return "payment_rejected"
	}
	return "error"
}

func (s *Service) placeOrder(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	keys := []string{lock.CustomerKey(req.CustomerID)}
	for _, it := range req.Items {
		keys = append(keys, lock.ProductKey(it.ProductID))
	}
	if s.Locker == nil {
		return s.run(ctx, req)
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	var res Result
	err := lock.WithLocks(ctx, s.Locker, keys, ttl, func(ctx context.Context) error {
		var err error
		res, err = s.run(ctx, req)
		return err
	})
	return res, err
}

func (s *Service) run(ctx context.Context, req Request) (Result, error) {
	cust, err := s.Store.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %s: %w", ErrCustomerNotFound, req.CustomerID, err)
		}
		return Result{}, err
	}

	lines := make([]store.Line, 0, len(req.Items))
	weight := decimal.Zero
	for _, it := range req.Items {
		p, err := s.Store.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Result{}, fmt.Errorf("%w: %s: %w", inventory.ErrProductNotFound, it.ProductID, err)
			}
			return Result{}, err
		}
		lines = append(lines, store.Line{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price})
		weight = weight.Add(p.Weight.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	if err := s.Ledger.CheckAvailability(ctx, lines); err != nil {
		return Result{}, err
	}

	opts := []pricing.Option{pricing.WithLogger(s.Logger)}
	if s.BulkTiers != nil {
		opts = append(opts, pricing.WithBulkTiers(s.BulkTiers))
	}
	if s.Now != nil {
		opts = append(opts, pricing.WithClock(s.Now))
	}
	engine, err := pricing.New(ctx, s.Store, lines, opts...)
	if err != nil {
		return Result{}, err
	}
	discounted, err := engine.ApplyAll(ctx, cust, req.PromotionCode)
	if err != nil {
		return Result{}, err
	}
	spent := engine.PointsSpent()
	if spent > 0 {
		obs.ObserveLoyalty("spent", spent)
	}
	if engine.PromotionApplied() {
		obs.ObservePromotion(req.PromotionCode)
	}

	res, err := s.settle(ctx, req, cust, lines, weight, engine, discounted)
	if err != nil {
		if spent > 0 {
			if rerr := s.Accounts.RefundSpentPoints(ctx, cust.ID, spent); rerr != nil {
				s.Logger.Error().Err(rerr).Str("customer_id", cust.ID).Int("points", spent).Msg("checkout_points_refund_failed")
			}
		}
		return Result{}, err
	}
	return res, nil
}

// settle runs every step after pricing.
func (s *Service) settle(ctx context.Context, req Request, cust store.Customer, lines []store.Line, weight decimal.Decimal, engine *pricing.Engine, discounted decimal.Decimal) (Result, error) {
	taxAmount := tax.Calculate(discounted, cust.Address)
	shippingCost, err := shipping.Cost(req.ShippingMethod, weight, cust.Tier, discounted)
	if err != nil {
		return Result{}, err
	}
	total := discounted.Add(taxAmount).Add(shippingCost)

	validator := s.Payments
	if validator == nil {
		validator = payment.StaticValidator{}
	}
	if err := validator.Validate(req.Payment, total); err != nil {
		return Result{}, err
	}

	subtotal := engine.Subtotal()
	projected := customer.PointsFor(subtotal)
	o, err := s.Orders.Create(ctx, order.Draft{
		CustomerID:          cust.ID,
		Lines:               lines,
		Subtotal:            subtotal,
		Tax:                 taxAmount,
		ShippingCost:        shippingCost,
		TotalPrice:          total,
		PaymentMethod:       req.Payment.Type,
		LoyaltyPointsSpent:  engine.PointsSpent(),
		LoyaltyPointsEarned: projected,
	})
	if err != nil {
		return Result{}, err
	}
	if err := s.Ledger.Deduct(ctx, lines, o.ID); err != nil {
		s.abandon(ctx, o)
		return Result{}, err
	}

	if s.Confirmer != nil {
		s.Confirmer.OrderConfirmed(ctx, cust, o)
	}
	// The order is paid and its stock taken, so a failed finalize does not
	// undo the checkout; the order keeps only the points really credited.
	earned, err := s.Accounts.FinalizeOrder(ctx, cust.ID, o.ID, subtotal)
	if err != nil {
		s.Logger.Error().Err(err).Int64("order_id", o.ID).Msg("checkout_finalize_failed")
	}
	if earned != projected {
		updated, err := s.Orders.RecordLoyaltyEarned(ctx, o.ID, earned)
		if err != nil {
			s.Logger.Error().Err(err).Int64("order_id", o.ID).Int("points", earned).Msg("checkout_record_points_failed")
		} else {
			o = updated
		}
	}
	res := Result{
		Order:        o,
		Subtotal:     subtotal,
		Discounted:   discounted,
		Tax:          taxAmount,
		Shipping:     shippingCost,
		Total:        total,
		Breakdown:    engine.Breakdown(),
		PointsSpent:  engine.PointsSpent(),
		PointsEarned: earned,
	}
	for _, p := range s.Ledger.LowStockCheck(ctx, lines, s.LowStockThreshold) {
		res.LowStock = append(res.LowStock, p.ID)
	}
	upgraded, err := s.Accounts.CheckAndUpgrade(ctx, cust.ID)
	if err != nil {
		s.Logger.Error().Err(err).Str("customer_id", cust.ID).Msg("checkout_upgrade_failed")
	}
	res.Upgraded = upgraded
	return res, nil
}

// abandon marks an order whose stock could not be taken as cancelled. The
// ledger has already put back any lines it took.
func (s *Service) abandon(ctx context.Context, o store.Order) {
	o.Status = store.OrderStatusCancelled
	if err := s.Store.PutOrder(ctx, o); err != nil {
		s.Logger.Error().Err(err).Int64("order_id", o.ID).Msg("checkout_abandon_failed")
		return
	}
	s.Logger.Warn().Int64("order_id", o.ID).Msg("checkout_order_abandoned")
}
