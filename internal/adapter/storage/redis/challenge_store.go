package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ChallengeStore implements ports.ChallengeStore using Redis. Each wallet has
// at most one outstanding login challenge; issuing a new one replaces it, and
// a login attempt consumes it whether or not the signature verifies.
type ChallengeStore struct {
	client *goredis.Client
	prefix string
}

// NewChallengeStore creates a new Redis-backed challenge store.
func NewChallengeStore(client *goredis.Client) *ChallengeStore {
	return &ChallengeStore{
		client: client,
		prefix: "challenge:",
	}
}

// Put stores the challenge nonce for the wallet, replacing any previous one.
func (s *ChallengeStore) Put(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error {
	err := s.client.Set(ctx, s.prefix+walletAddress, nonce, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis challenge put: %w", err)
	}
	return nil
}

// Take retrieves and deletes the wallet's challenge atomically (GETDEL).
// Returns "" if no challenge is outstanding.
func (s *ChallengeStore) Take(ctx context.Context, walletAddress string) (string, error) {
	val, err := s.client.GetDel(ctx, s.prefix+walletAddress).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("redis challenge take: %w", err)
	}
	return val, nil
}
