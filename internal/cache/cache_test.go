package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/cache"
)

func newStore(t *testing.T) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &cache.Store{R: rdb, Prefix: "kasir:cache:", TTL: time.Minute}, mr
}

func TestStoreRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	key := s.Key(ctx, "sales", "2026-01-01")
	require.Equal(t, "kasir:cache:g0:sales:2026-01-01", key)
	s.Set(ctx, key, map[string]int{"count": 3})

	var got map[string]int
	require.True(t, s.Get(ctx, key, &got))
	require.Equal(t, 3, got["count"])
	require.Equal(t, time.Minute, mr.TTL(key))

	require.NoError(t, s.Invalidate(ctx))
	fresh := s.Key(ctx, "sales", "2026-01-01")
	require.NotEqual(t, key, fresh)
	require.False(t, s.Get(ctx, fresh, &got))
}

func TestStoreDisabled(t *testing.T) {
	ctx := context.Background()
	var nilStore *cache.Store
	require.False(t, nilStore.Enabled())

	s := &cache.Store{Prefix: "x:"}
	s.Set(ctx, "k", 1)
	var v int
	require.False(t, s.Get(ctx, "k", &v))
	require.NoError(t, s.Invalidate(ctx))
	require.Equal(t, "x:g0:k", s.Key(ctx, "k"))
}
