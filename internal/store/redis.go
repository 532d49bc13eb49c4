package store

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores each collection as a plain Redis string.
type RedisKV struct {
	R *redis.Client
}

// Get implements KV.
func (s RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

// Set implements KV. Values never expire.
func (s RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return s.R.Set(ctx, key, value, 0).Err()
}

// Delete implements KV.
func (s RedisKV) Delete(ctx context.Context, key string) error {
	return s.R.Del(ctx, key).Err()
}

// Keys implements KV using SCAN so large keyspaces do not block the server.
func (s RedisKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.R.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(out)
	return out, nil
}

// Ping implements KV.
func (s RedisKV) Ping(ctx context.Context) error {
	return s.R.Ping(ctx).Err()
}
