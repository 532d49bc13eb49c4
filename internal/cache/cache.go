// Package cache stores JSON-encoded read models in Redis. Keys embed a generation counter so a
// single INCR invalidates every entry written before it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a namespaced JSON cache. A nil client or a non-positive TTL disables caching.
type Store struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

// Enabled reports whether reads and writes reach Redis.
func (s *Store) Enabled() bool {
	return s != nil && s.R != nil && s.TTL > 0
}

func (s *Store) generationKey() string {
	return s.Prefix + "gen"
}

// Key builds a cache key for parts under the current generation.
func (s *Store) Key(ctx context.Context, parts ...any) string {
	formatted := make([]string, 0, len(parts)+2)
	formatted = append(formatted, "g"+s.generation(ctx))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return s.Prefix + strings.Join(formatted, ":")
}

func (s *Store) generation(ctx context.Context) string {
	if !s.Enabled() {
		return "0"
	}
	gen, err := s.R.Get(ctx, s.generationKey()).Result()
	if err != nil {
		return "0"
	}
	return gen
}

// Get decodes the cached value for key into dst. Misses and decode failures return false.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	if !s.Enabled() {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// Set stores value under key with the configured TTL. Failures are ignored.
func (s *Store) Set(ctx context.Context, key string, value any) {
	if !s.Enabled() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}

// Invalidate bumps the generation so existing entries are never read again. They expire by TTL.
func (s *Store) Invalidate(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.R.Incr(ctx, s.generationKey()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}
