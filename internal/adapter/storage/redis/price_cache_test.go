package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewPriceCache(client)
	ctx := context.Background()

	// Miss before set
	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	price := decimal.RequireFromString("200.15")
	err = cache.Set(ctx, price, time.Minute)
	require.NoError(t, err)

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, price.Equal(got))
}

func TestPriceCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewPriceCache(client)
	ctx := context.Background()

	err := cache.Set(ctx, decimal.RequireFromString("180"), 1*time.Second)
	require.NoError(t, err)

	s.FastForward(2 * time.Second)

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "expired price should miss")
}

func TestPriceCache_PreservesPrecision(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewPriceCache(client)
	ctx := context.Background()

	price := decimal.RequireFromString("199.987654321")
	err := cache.Set(ctx, price, time.Minute)
	require.NoError(t, err)

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, price.String(), got.String())
}
