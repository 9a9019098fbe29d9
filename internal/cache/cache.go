// Package cache holds read-through caches for hot read models such as cart
// summaries. Entries are JSON and always safe to drop: the store stays the
// source of truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Cache is a byte-oriented key/value cache with a per-implementation TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// GetJSON reads and decodes a cached value.
func GetJSON[T any](ctx context.Context, c Cache, key string) (*T, error) {
	data, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return &v, nil
}

// SetJSON encodes and stores a value.
func SetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	return c.Set(ctx, key, data)
}

// CartKey is the cache key of a cart summary.
func CartKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }
func (Noop) Set(context.Context, string, []byte) error   { return nil }
func (Noop) Delete(context.Context, ...string) error     { return nil }
