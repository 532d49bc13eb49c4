// Package store persists every point-of-sale collection as an independent JSON value under its own key.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/backend-kasir/internal/obs"
)

// ErrNotFound is returned by KV.Get when the key holds no value.
var ErrNotFound = errors.New("store: key not found")

// Collection keys. Each one is stored and replaced independently.
const (
	KeyProducts   = "products"
	KeyPromotions = "promotions"
	KeySales      = "sales"
	KeyMovements  = "movements"
	KeyBackups    = "backups"
	KeyCustomers  = "customers"
	KeySuppliers  = "suppliers"
	KeyUsers      = "users"
	KeyAudit      = "audit"
	CartPrefix    = "cart:"
)

// KV is the minimal key/value contract the services persist through.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// Namespaced prefixes every key so several tills can share one backend.
type Namespaced struct {
	KV     KV
	Prefix string
}

func (n Namespaced) full(key string) string {
	if n.Prefix == "" {
		return key
	}
	return n.Prefix + ":" + key
}

// Get implements KV.
func (n Namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.KV.Get(ctx, n.full(key))
}

// Set implements KV.
func (n Namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.KV.Set(ctx, n.full(key), value)
}

// Delete implements KV.
func (n Namespaced) Delete(ctx context.Context, key string) error {
	return n.KV.Delete(ctx, n.full(key))
}

// Keys implements KV and strips the namespace from the result.
func (n Namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.KV.Keys(ctx, n.full(prefix))
	if err != nil {
		return nil, err
	}
	if n.Prefix == "" {
		return keys, nil
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.Prefix+":"))
	}
	return out, nil
}

// Ping implements KV.
func (n Namespaced) Ping(ctx context.Context) error {
	return n.KV.Ping(ctx)
}

// Instrumented records per-operation latency for the wrapped backend.
type Instrumented struct {
	KV      KV
	Driver  string
	Metrics *obs.StoreMetrics
}

// Get implements KV.
func (i Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := i.KV.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		i.Metrics.Observe(i.Driver, "get", start, nil)
		return nil, err
	}
	i.Metrics.Observe(i.Driver, "get", start, err)
	return v, err
}

// Set implements KV.
func (i Instrumented) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := i.KV.Set(ctx, key, value)
	i.Metrics.Observe(i.Driver, "set", start, err)
	return err
}

// Delete implements KV.
func (i Instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.KV.Delete(ctx, key)
	i.Metrics.Observe(i.Driver, "delete", start, err)
	return err
}

// Keys implements KV.
func (i Instrumented) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := i.KV.Keys(ctx, prefix)
	i.Metrics.Observe(i.Driver, "keys", start, err)
	return keys, err
}

// Ping implements KV.
func (i Instrumented) Ping(ctx context.Context) error {
	return i.KV.Ping(ctx)
}
