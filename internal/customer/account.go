// Package customer keeps membership tier, loyalty balance and order history
// consistent with the orders a customer places and cancels.
package customer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// Tier thresholds on lifetime value.
var (
	SilverThreshold = decimal.NewFromInt(500)
	GoldThreshold   = decimal.NewFromInt(1000)
)

// Segment names.
const (
	SegmentAll      = "all"
	SegmentGold     = "gold"
	SegmentInactive = "inactive"
)

// InactiveAfter is the quiet period after which a customer is inactive.
const InactiveAfter = 90 * 24 * time.Hour

// ErrUnknownSegment is returned by Segment for names it does not know.
var ErrUnknownSegment = errors.New("customer: unknown segment")

// UpgradeNotifier is told about tier upgrades.
type UpgradeNotifier interface {
	TierUpgraded(ctx context.Context, customer store.Customer, from store.Tier)
}

// Accounts implements the customer-side ledger operations.
type Accounts struct {
	Store    store.Store
	Notifier UpgradeNotifier
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (a *Accounts) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// LifetimeValue sums TotalPrice over the customer's non-cancelled orders.
// History entries that no longer resolve are skipped.
func (a *Accounts) LifetimeValue(ctx context.Context, customerID string) (decimal.Decimal, error) {
	c, err := a.Store.GetCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.lifetimeValue(ctx, c)
}

func (a *Accounts) lifetimeValue(ctx context.Context, c store.Customer) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, id := range c.OrderHistory {
		o, err := a.Store.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return decimal.Zero, err
		}
		if o.Status == store.OrderStatusCancelled {
			continue
		}
		total = total.Add(o.TotalPrice)
	}
	return total, nil
}

// CheckAndUpgrade promotes the customer when lifetime value crosses a tier
// threshold and reports whether the tier changed. Suspended customers are
// never upgraded.
func (a *Accounts) CheckAndUpgrade(ctx context.Context, customerID string) (bool, error) {
	c, err := a.Store.GetCustomer(ctx, customerID)
	if err != nil {
		return false, err
	}
	if c.Tier == store.TierSuspended {
		return false, nil
	}
	ltv, err := a.lifetimeValue(ctx, c)
	if err != nil {
		return false, err
	}

	next := c.Tier
	switch {
	case ltv.GreaterThanOrEqual(GoldThreshold) && c.Tier != store.TierGold:
		next = store.TierGold
	case ltv.GreaterThanOrEqual(SilverThreshold) && c.Tier == store.TierBronze:
		next = store.TierSilver
	}
	if next == c.Tier {
		return false, nil
	}
	if err := a.Store.SetTier(ctx, c.ID, next); err != nil {
		return false, fmt.Errorf("customer: upgrade %s: %w", c.ID, err)
	}
	from := c.Tier
	c.Tier = next
	a.Logger.Info().Str("customer_id", c.ID).Str("from", string(from)).Str("to", string(next)).Str("lifetime_value", ltv.StringFixed(2)).Msg("tier_upgraded")
	if a.Notifier != nil {
		a.Notifier.TierUpgraded(ctx, c, from)
	}
	return true, nil
}

// PointsFor is the loyalty credit for an order subtotal: one point per whole
// currency unit.
func PointsFor(subtotal decimal.Decimal) int {
	if !subtotal.IsPositive() {
		return 0
	}
	return int(subtotal.Floor().IntPart())
}

// FinalizeOrder appends the order to the customer's history and credits one
// point per whole currency unit of subtotal. It returns the points earned.
func (a *Accounts) FinalizeOrder(ctx context.Context, customerID string, orderID int64, subtotal decimal.Decimal) (int, error) {
	if err := a.Store.AppendOrderHistory(ctx, customerID, orderID); err != nil {
		return 0, fmt.Errorf("customer: record order %d: %w", orderID, err)
	}
	earned := PointsFor(subtotal)
	if earned == 0 {
		return 0, nil
	}
	if _, err := a.Store.AdjustLoyalty(ctx, customerID, earned); err != nil {
		return 0, fmt.Errorf("customer: credit points for order %d: %w", orderID, err)
	}
	obs.ObserveLoyalty("earned", earned)
	return earned, nil
}

// RefundSpentPoints credits back points spent on a checkout that did not
// complete.
func (a *Accounts) RefundSpentPoints(ctx context.Context, customerID string, points int) error {
	if points <= 0 {
		return nil
	}
	if _, err := a.Store.AdjustLoyalty(ctx, customerID, points); err != nil {
		return fmt.Errorf("customer: refund %d points: %w", points, err)
	}
	obs.ObserveLoyalty("refunded", points)
	a.Logger.Info().Str("customer_id", customerID).Int("points", points).Msg("loyalty_points_refunded")
	return nil
}

// RefundLoyaltyForOrder undoes the loyalty effects of a cancelled order: the
// points spent on it are credited back, then the points it earned are taken
// away as far as the balance allows. It returns the net balance change.
func (a *Accounts) RefundLoyaltyForOrder(ctx context.Context, customerID string, order store.Order) (int, error) {
	net := 0
	if order.LoyaltyPointsSpent > 0 {
		if err := a.RefundSpentPoints(ctx, customerID, order.LoyaltyPointsSpent); err != nil {
			return 0, err
		}
		net += order.LoyaltyPointsSpent
	}
	if order.LoyaltyPointsEarned <= 0 {
		return net, nil
	}
	for attempt := 0; attempt < 3; attempt++ {
		c, err := a.Store.GetCustomer(ctx, customerID)
		if err != nil {
			return net, err
		}
		reverse := min(order.LoyaltyPointsEarned, c.LoyaltyPoints)
		if reverse == 0 {
			return net, nil
		}
		if _, err := a.Store.AdjustLoyalty(ctx, customerID, -reverse); err != nil {
			if errors.Is(err, store.ErrInsufficientPoints) {
				continue
			}
			return net, err
		}
		obs.ObserveLoyalty("reversed", reverse)
		return net - reverse, nil
	}
	a.Logger.Warn().Str("customer_id", customerID).Int64("order_id", order.ID).Msg("loyalty_reversal_gave_up")
	return net, nil
}

// Segment returns the customers in the named segment, sorted by ID. Inactive
// customers have placed no order within InactiveAfter.
func (a *Accounts) Segment(ctx context.Context, name string) ([]store.Customer, error) {
	all, err := a.Store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	var keep func(store.Customer) (bool, error)
	switch name {
	case SegmentAll:
		keep = func(store.Customer) (bool, error) { return true, nil }
	case SegmentGold:
		keep = func(c store.Customer) (bool, error) { return c.Tier == store.TierGold, nil }
	case SegmentInactive:
		cutoff := a.now().Add(-InactiveAfter)
		keep = func(c store.Customer) (bool, error) { return a.inactiveSince(ctx, c, cutoff) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSegment, name)
	}

	out := make([]store.Customer, 0, len(all))
	for _, c := range all {
		ok, err := keep(c)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (a *Accounts) inactiveSince(ctx context.Context, c store.Customer, cutoff time.Time) (bool, error) {
	for _, id := range c.OrderHistory {
		o, err := a.Store.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return false, err
		}
		if o.CreatedAt.After(cutoff) {
			return false, nil
		}
	}
	return true, nil
}
