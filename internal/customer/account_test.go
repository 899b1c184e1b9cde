package customer_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/customer"
	"github.com/noah-isme/toko-checkout/internal/store"
)

type upgrades struct {
	seen []store.Tier
}

func (u *upgrades) TierUpgraded(_ context.Context, c store.Customer, _ store.Tier) {
	u.seen = append(u.seen, c.Tier)
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, c store.Customer) (*customer.Accounts, *store.Memory, *upgrades) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.PutCustomer(context.Background(), c))
	n := &upgrades{}
	return &customer.Accounts{Store: st, Notifier: n, Now: func() time.Time { return now }}, st, n
}

func placeOrder(t *testing.T, st *store.Memory, customerID string, total int64, status store.OrderStatus, at time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := st.NextOrderID(ctx)
	require.NoError(t, err)
	require.NoError(t, st.PutOrder(ctx, store.Order{
		ID: id, CustomerID: customerID, Status: status, CreatedAt: at, TotalPrice: decimal.NewFromInt(total),
	}))
	require.NoError(t, st.AppendOrderHistory(ctx, customerID, id))
	return id
}

func TestBronzeToSilverToGold(t *testing.T) {
	accounts, st, notes := setup(t, store.Customer{ID: "C1", Tier: store.TierBronze})
	ctx := context.Background()

	placeOrder(t, st, "C1", 600, store.OrderStatusPending, now)
	upgraded, err := accounts.CheckAndUpgrade(ctx, "C1")
	require.NoError(t, err)
	require.True(t, upgraded)

	upgraded, err = accounts.CheckAndUpgrade(ctx, "C1")
	require.NoError(t, err)
	require.False(t, upgraded)

	placeOrder(t, st, "C1", 400, store.OrderStatusDelivered, now)
	upgraded, err = accounts.CheckAndUpgrade(ctx, "C1")
	require.NoError(t, err)
	require.True(t, upgraded)

	c, err := st.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	require.Equal(t, store.TierGold, c.Tier)
	require.Equal(t, []store.Tier{store.TierSilver, store.TierGold}, notes.seen)
}

func TestSuspendedNeverUpgrades(t *testing.T) {
	accounts, st, notes := setup(t, store.Customer{ID: "C1", Tier: store.TierSuspended})
	placeOrder(t, st, "C1", 5000, store.OrderStatusDelivered, now)

	upgraded, err := accounts.CheckAndUpgrade(context.Background(), "C1")
	require.NoError(t, err)
	require.False(t, upgraded)
	require.Empty(t, notes.seen)
}

func TestLifetimeValueSkipsCancelledAndMissing(t *testing.T) {
	accounts, st, _ := setup(t, store.Customer{ID: "C1", Tier: store.TierBronze})
	ctx := context.Background()
	placeOrder(t, st, "C1", 300, store.OrderStatusShipped, now)
	placeOrder(t, st, "C1", 900, store.OrderStatusCancelled, now)
	require.NoError(t, st.AppendOrderHistory(ctx, "C1", 404))

	ltv, err := accounts.LifetimeValue(ctx, "C1")
	require.NoError(t, err)
	require.True(t, ltv.Equal(decimal.NewFromInt(300)))

	_, err = accounts.LifetimeValue(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFinalizeOrderCreditsFlooredSubtotal(t *testing.T) {
	accounts, st, _ := setup(t, store.Customer{ID: "C1", Tier: store.TierBronze, LoyaltyPoints: 10})
	ctx := context.Background()

	earned, err := accounts.FinalizeOrder(ctx, "C1", 7, decimal.RequireFromString("99.99"))
	require.NoError(t, err)
	require.Equal(t, 99, earned)

	c, err := st.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	require.Equal(t, 109, c.LoyaltyPoints)
	require.Equal(t, []int64{7}, c.OrderHistory)
}

func TestRefundLoyaltyForOrder(t *testing.T) {
	t.Run("credits spent then reverses earned", func(t *testing.T) {
		accounts, st, _ := setup(t, store.Customer{ID: "C1", Tier: store.TierGold, LoyaltyPoints: 1000})
		net, err := accounts.RefundLoyaltyForOrder(context.Background(), "C1", store.Order{ID: 1, LoyaltyPointsSpent: 500, LoyaltyPointsEarned: 749})
		require.NoError(t, err)
		require.Equal(t, -249, net)

		c, err := st.GetCustomer(context.Background(), "C1")
		require.NoError(t, err)
		require.Equal(t, 751, c.LoyaltyPoints)
	})

	t.Run("reversal clamps at zero", func(t *testing.T) {
		accounts, st, _ := setup(t, store.Customer{ID: "C1", Tier: store.TierGold, LoyaltyPoints: 20})
		net, err := accounts.RefundLoyaltyForOrder(context.Background(), "C1", store.Order{ID: 1, LoyaltyPointsEarned: 300})
		require.NoError(t, err)
		require.Equal(t, -20, net)

		c, err := st.GetCustomer(context.Background(), "C1")
		require.NoError(t, err)
		require.Zero(t, c.LoyaltyPoints)
	})
}

func TestSegments(t *testing.T) {
	accounts, st, _ := setup(t, store.Customer{ID: "C1", Tier: store.TierGold})
	ctx := context.Background()
	require.NoError(t, st.PutCustomer(ctx, store.Customer{ID: "C2", Tier: store.TierBronze}))
	require.NoError(t, st.PutCustomer(ctx, store.Customer{ID: "C3", Tier: store.TierSilver}))
	placeOrder(t, st, "C1", 10, store.OrderStatusPending, now.Add(-24*time.Hour))
	placeOrder(t, st, "C2", 10, store.OrderStatusPending, now.Add(-100*24*time.Hour))

	all, err := accounts.Segment(ctx, customer.SegmentAll)
	require.NoError(t, err)
	require.Len(t, all, 3)

	gold, err := accounts.Segment(ctx, customer.SegmentGold)
	require.NoError(t, err)
	require.Len(t, gold, 1)
	require.Equal(t, "C1", gold[0].ID)

	inactive, err := accounts.Segment(ctx, customer.SegmentInactive)
	require.NoError(t, err)
	require.Len(t, inactive, 2)
	require.Equal(t, "C2", inactive[0].ID)
	require.Equal(t, "C3", inactive[1].ID)

	_, err = accounts.Segment(ctx, "vip")
	require.ErrorIs(t, err, customer.ErrUnknownSegment)
}
