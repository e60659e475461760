package cache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// NoExpiry is reported by TTL for a key that exists but never expires.
const NoExpiry time.Duration = -1

// Cacher is the subset of Cache used by the read-through helpers.
type Cacher interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// TTL reports the remaining lifetime of key, NoExpiry, or ErrMiss.
	TTL(ctx context.Context, key string) (time.Duration, error)
	InvalidatePrefix(ctx context.Context, prefix string) (int64, error)
	Close() error
}

type FetchFunc[T any] func(ctx context.Context) (T, error)

const (
	fetchTimeout = 15 * time.Second
	setTimeout   = 5 * time.Second
	maxTTLJitter = 15 * time.Second

	// a hit refreshes in the background once less than 1/refreshAheadDivisor
	// of the ttl is left
	refreshAheadDivisor = 5
)

// addTTLJitter spreads expiry by up to ±maxTTLJitter so keys written together do
// not expire together. TTLs shorter than twice the jitter are returned as is.
func addTTLJitter(ttl time.Duration) time.Duration {
	if ttl <= 2*maxTTLJitter {
		return ttl
	}
	return ttl + rand.N(2*maxTTLJitter) - maxTTLJitter
}

// dueForRefresh reports whether an entry with remaining lifetime left should be
// refetched ahead of expiry.
func dueForRefresh(left, ttl time.Duration) bool {
	if ttl <= 0 || left < 0 {
		return false
	}
	return left < ttl/refreshAheadDivisor
}

func store[T any](c Cacher, key string, value T, ttl time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), setTimeout)
	defer cancel()

	exp := addTTLJitter(ttl)
	if err := c.Set(ctx, key, value, exp); err != nil {
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	logger.Debug("cache stored", zap.String("key", key), zap.Duration("ttl", exp))
}

func refreshAhead[T any](c Cacher, sf *singleflight.Group, key string, ttl time.Duration, logger *zap.Logger, fn FetchFunc[T]) {
	go func() {
		_, _, _ = sf.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			defer cancel()

			value, err := fn(ctx)
			if err != nil {
				logger.Warn("refresh ahead failed", zap.String("key", key), zap.Error(err))
				return nil, err
			}
			store(c, key, value, ttl, logger)
			return nil, nil
		})
	}()
}

// FindAndCache returns the cached value for key or loads it with fn.
//
// Concurrent misses for one key share a single fn call. A hit whose remaining
// TTL has fallen under a fifth of ttl is served from cache while fn reloads it
// in the background. A nil Cacher calls fn directly, and cache errors are
// treated as misses so they never fail the read.
func FindAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if c == nil {
		return fn(ctx)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var hit T
	err := c.Get(ctx, key, &hit)
	if err == nil {
		if left, terr := c.TTL(ctx, key); terr == nil && dueForRefresh(left, ttl) {
			logger.Debug("cache hit near expiry", zap.String("key", key), zap.Duration("left", left))
			refreshAhead(c, sf, key, ttl, logger, fn)
		}
		return hit, nil
	}
	if !IsMiss(err) {
		logger.Warn("cache get failed, loading from source", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := sf.Do(key, func() (any, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		go store(c, key, value, ttl, logger)
		return value, nil
	})
	if err != nil {
		logger.Error("load failed", zap.String("key", key), zap.Error(err))
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: unexpected %T for key %q", v, key)
	}
	return value, nil
}
