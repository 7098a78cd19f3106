// Package cache stores derived, recomputable values such as budget summaries.
// A miss is never an error: callers recompute and Set.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value cache with per-store TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Delete(ctx context.Context, keys ...string)
}

// Nop is a Store that never holds anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Nop) Set(context.Context, string, []byte)        {}
func (Nop) Delete(context.Context, ...string)          {}

// New returns a Redis store when redisURL is set and reachable, otherwise an
// in-process LRU of the given size.
func New(redisURL string, ttl time.Duration, lruSize int) (Store, error) {
	if redisURL == "" {
		return NewLRU(lruSize, ttl), nil
	}
	return NewRedis(redisURL, ttl)
}
