package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/cache"
)

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	c := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "toko", time.Minute)
	ctx := context.Background()

	key := c.Key("report", "2024-06-01", 7)
	require.Equal(t, "toko:report:2024-06-01:7", key)

	var got map[string]int
	ok, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, key, map[string]int{"orders": 3}))
	ok, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, got["orders"])

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	var c *cache.JSON
	require.NoError(t, c.Set(context.Background(), "k", 1))
	var v int
	ok, err := c.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	require.False(t, ok)
}
