package cache

import (
	"context"
	"time"

	"github.com/akolanti/DigestAPI/internal/metrics"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
	"golang.org/x/sync/singleflight"
)

// KV is the backing store. Implementations: the Redis result store and the
// in-memory fallback.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Cache is a content-addressed result cache with single-flight semantics:
// within the process, at most one computation runs per key at a time, and
// callers racing on the same key share its outcome. The flight table is
// shared across all requests, not per call site.
type Cache struct {
	kv     KV
	flight singleflight.Group
	ttl    time.Duration
	logger *logger_i.Logger
}

func New(kv KV, ttl time.Duration) *Cache {
	return &Cache{
		kv:     kv,
		ttl:    ttl,
		logger: logger_i.NewLogger("ResultCache"),
	}
}

type flightResult struct {
	value     string
	fromStore bool
}

// GetOrCompute returns the stored value for key, or runs compute exactly once
// across concurrent callers and stores its result. The second return reports
// whether the value came from the store. A failed compute clears the flight
// slot so the next caller retries instead of inheriting a transient failure.
func (c *Cache) GetOrCompute(ctx context.Context, key string, forceRefresh bool, compute func(context.Context) (string, error)) (string, bool, error) {
	if forceRefresh {
		metrics.CaptureCacheOutcome("bypass")
		value, err := compute(ctx)
		if err != nil {
			return "", false, err
		}
		c.save(ctx, key, value)
		return value, false, nil
	}

	if value, ok := c.lookup(ctx, key); ok {
		metrics.CaptureCacheOutcome("hit")
		return value, true, nil
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// a racing flight may have stored the value after our miss
		if value, ok := c.lookup(ctx, key); ok {
			return flightResult{value: value, fromStore: true}, nil
		}
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.save(ctx, key, value)
		return flightResult{value: value, fromStore: false}, nil
	})
	if err != nil {
		return "", false, err
	}

	res := v.(flightResult)
	if res.fromStore {
		metrics.CaptureCacheOutcome("hit")
	} else {
		metrics.CaptureCacheOutcome("miss")
	}
	return res.value, res.fromStore, nil
}

// lookup treats every backend failure as a miss. Cache trouble triggers
// recomputation, never a user-visible error.
func (c *Cache) lookup(ctx context.Context, key string) (string, bool) {
	value, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed, treating as miss", "error", err)
		return "", false
	}
	return value, ok
}

func (c *Cache) save(ctx context.Context, key string, value string) {
	if err := c.kv.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Error("failed to store result", "error", err)
	}
}
