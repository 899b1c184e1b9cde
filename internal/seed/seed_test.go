package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/seed"
	"github.com/noah-isme/toko-checkout/internal/store"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, seed.Load(ctx, st, now))

	products, err := st.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 4)

	alice, err := st.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	require.Equal(t, store.TierGold, alice.Tier)
	require.Equal(t, 500, alice.LoyaltyPoints)

	promo, err := st.GetPromotion(ctx, "BOOKSALE")
	require.NoError(t, err)
	require.Equal(t, now.Add(10*24*time.Hour), promo.ValidUntil)

	for _, p := range products {
		_, err := st.GetSupplier(ctx, p.SupplierID)
		require.NoError(t, err, p.ID)
	}
}
