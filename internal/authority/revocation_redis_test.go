package authority

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisRevocations, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	return NewRedisRevocations(client), m
}

func TestRedisRevocations_AddContains(t *testing.T) {
	store, m := newRedisStore(t)
	ctx := context.Background()

	hash := TokenHash("some-token")
	require.NoError(t, store.Add(ctx, hash, time.Now().Add(2*time.Second)))

	ok, err := store.Contains(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)

	// the key TTL mirrors the token lifetime
	m.FastForward(3 * time.Second)
	ok, err = store.Contains(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisRevocations_ExpiredTokenNotStored(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	hash := TokenHash("stale-token")
	require.NoError(t, store.Add(ctx, hash, time.Now().Add(-time.Minute)))

	ok, err := store.Contains(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisRevocations_ContainsReportsStoreErrors(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewRedisRevocations(client)
	m.Close()

	_, err = store.Contains(context.Background(), TokenHash("x"))
	require.Error(t, err, "a dead backend must surface, not read as not-revoked")
}

func TestMemoryRevocations_Prune(t *testing.T) {
	store := NewMemoryRevocations()
	ctx := context.Background()
	now := time.Unix(1000, 0).UTC()

	require.NoError(t, store.Add(ctx, "a", now.Add(time.Hour)))
	require.NoError(t, store.Add(ctx, "b", now.Add(time.Minute)))

	require.NoError(t, store.Prune(ctx, now.Add(time.Minute)))
	ok, _ := store.Contains(ctx, "a")
	require.True(t, ok, "entry for a live token must survive pruning")
	ok, _ = store.Contains(ctx, "b")
	require.False(t, ok, "entry expiring exactly now is prunable")
}
