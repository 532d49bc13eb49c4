package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresKV stores each collection as one jsonb row of the kv_state table.
type PostgresKV struct {
	Pool *pgxpool.Pool
}

// Get implements KV.
func (s PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.Pool.QueryRow(ctx, `SELECT value FROM kv_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return value, err
}

// Set implements KV.
func (s PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO kv_state (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}

// Delete implements KV.
func (s PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM kv_state WHERE key = $1`, key)
	return err
}

// Keys implements KV.
func (s PostgresKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT key FROM kv_state WHERE key LIKE $1 ESCAPE '\' ORDER BY key`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Ping implements KV.
func (s PostgresKV) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
