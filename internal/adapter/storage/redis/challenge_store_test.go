package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeStore_PutAndTake(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewChallengeStore(client)
	ctx := context.Background()

	err := store.Put(ctx, "wallet-A", "nonce-1", 5*time.Minute)
	require.NoError(t, err)

	nonce, err := store.Take(ctx, "wallet-A")
	require.NoError(t, err)
	assert.Equal(t, "nonce-1", nonce)

	// Take consumed the challenge
	nonce, err = store.Take(ctx, "wallet-A")
	require.NoError(t, err)
	assert.Empty(t, nonce)
}

func TestChallengeStore_Take_NoChallenge(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewChallengeStore(client)

	nonce, err := store.Take(context.Background(), "wallet-unknown")
	require.NoError(t, err)
	assert.Empty(t, nonce)
}

func TestChallengeStore_PutReplacesPrevious(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "wallet-A", "old-nonce", 5*time.Minute))
	require.NoError(t, store.Put(ctx, "wallet-A", "new-nonce", 5*time.Minute))

	nonce, err := store.Take(ctx, "wallet-A")
	require.NoError(t, err)
	assert.Equal(t, "new-nonce", nonce)
}

func TestChallengeStore_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "wallet-A", "nonce-1", 1*time.Second))

	s.FastForward(2 * time.Second)

	nonce, err := store.Take(ctx, "wallet-A")
	require.NoError(t, err)
	assert.Empty(t, nonce, "expired challenge should be gone")
}
