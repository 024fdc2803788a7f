package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kochabx/portal/log"
)

// Loader reads through the cache: misses are loaded once per key even under
// concurrent requests, and cache failures never fail the read.
type Loader[T any] struct {
	cache  Cache
	ttl    time.Duration
	codec  Codec
	group  singleflight.Group
	logger *log.Logger
}

func NewLoader[T any](c Cache, ttl time.Duration, logger *log.Logger) *Loader[T] {
	return &Loader[T]{cache: c, ttl: ttl, codec: JSON, logger: log.OrGlobal(logger)}
}

// Get returns the cached value for key, or calls load and caches its result.
// Errors from load are returned as is and nothing is cached.
func (l *Loader[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if b, err := l.cache.Get(ctx, key); err == nil {
		var v T
		if err := l.codec.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		l.logger.Debug().Str("key", key).Msg("discarding undecodable cache entry")
	} else if !errors.Is(err, ErrNotFound) {
		l.logger.Debug().Err(err).Str("key", key).Msg("cache read failed, loading")
	}

	res, err, _ := l.group.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		if b, err := l.codec.Marshal(v); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		} else if err := l.cache.Set(ctx, key, b, l.ttl); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// Invalidate drops key; failures are logged.
func (l *Loader[T]) Invalidate(ctx context.Context, key string) {
	if err := l.cache.Delete(ctx, key); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("cache invalidate failed")
	}
}
