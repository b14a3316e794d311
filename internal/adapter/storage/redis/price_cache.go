package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// priceKey is the single key holding the last fetched SOL/USD price.
const priceKey = "price:sol-usd"

// PriceCache implements ports.PriceCache using Redis. Expiry is enforced by
// the key's TTL; a missing key means the cached price is stale.
type PriceCache struct {
	client *goredis.Client
}

// NewPriceCache creates a new Redis-backed price cache.
func NewPriceCache(client *goredis.Client) *PriceCache {
	return &PriceCache{client: client}
}

// Get returns the cached price and whether one was present.
func (c *PriceCache) Get(ctx context.Context) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, priceKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("redis price get: %w", err)
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis price parse: %w", err)
	}
	return price, true, nil
}

// Set stores the price with TTL.
func (c *PriceCache) Set(ctx context.Context, price decimal.Decimal, ttl time.Duration) error {
	err := c.client.Set(ctx, priceKey, price.String(), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis price set: %w", err)
	}
	return nil
}
