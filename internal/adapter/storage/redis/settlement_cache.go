package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// SettlementCache implements ports.SettlementCache using Redis. It shortcuts
// repeated result callbacks for an already-settled contract; the contract row
// in the database stays authoritative.
type SettlementCache struct {
	client *goredis.Client
	prefix string
}

// NewSettlementCache creates a new Redis-backed settlement cache.
func NewSettlementCache(client *goredis.Client) *SettlementCache {
	return &SettlementCache{
		client: client,
		prefix: "settlement:",
	}
}

// Get retrieves a cached payout summary by contract ID.
// Returns nil, nil if the key does not exist.
func (c *SettlementCache) Get(ctx context.Context, contractID uuid.UUID) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+contractID.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis settlement get: %w", err)
	}
	return val, nil
}

// Set stores a payout summary with TTL.
func (c *SettlementCache) Set(ctx context.Context, contractID uuid.UUID, summary []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+contractID.String(), summary, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis settlement set: %w", err)
	}
	return nil
}
