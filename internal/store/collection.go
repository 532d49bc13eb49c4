package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection is a typed view over one key holding a JSON array.
type Collection[T any] struct {
	kv  KV
	key string
}

// NewCollection binds a typed collection to key.
func NewCollection[T any](kv KV, key string) *Collection[T] {
	return &Collection[T]{kv: kv, key: key}
}

// Key returns the storage key of the collection.
func (c *Collection[T]) Key() string { return c.key }

// Load returns the stored items; a missing key yields an empty slice.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	found, err := GetJSON(ctx, c.kv, c.key, &items)
	if err != nil {
		return nil, err
	}
	if !found || items == nil {
		return make([]T, 0), nil
	}
	return items, nil
}

// Save replaces the stored collection wholesale.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = make([]T, 0)
	}
	return SetJSON(ctx, c.kv, c.key, items)
}

// Raw returns the serialized collection as stored.
func (c *Collection[T]) Raw(ctx context.Context) ([]byte, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, ErrNotFound) {
		return []byte("[]"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.key, err)
	}
	return raw, nil
}

// GetJSON decodes the value at key into dst and reports whether it existed.
func GetJSON(ctx context.Context, kv KV, key string, dst any) (bool, error) {
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
