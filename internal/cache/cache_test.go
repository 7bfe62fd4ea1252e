package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cache"
)

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.New(client, "product:", time.Minute)
	ctx := context.Background()

	var out map[string]int
	ok, err := c.Get(ctx, "42", &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "42", map[string]int{"price": 700}))
	require.True(t, mr.Exists("product:42"))

	ok, err = c.Get(ctx, "42", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 700, out["price"])

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, "42", &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNilClientNeverHits(t *testing.T) {
	c := cache.New(nil, "x:", time.Minute)
	var out string
	ok, err := c.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Set(context.Background(), "k", "v"))
}
