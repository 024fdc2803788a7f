// Package cache is a small key/value cache with a Redis backend, an in-process
// backend and a combination of both that keeps serving when Redis is down.
//
// The cache is never authoritative. Callers treat every error as a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get for missing or expired keys.
	ErrNotFound = errors.New("cache: key not found")
	ErrClosed   = errors.New("cache: closed")
)

type Cache interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl. A ttl <= 0 keeps the entry until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key matching pattern and returns how many
	// were removed. See Pattern for the accepted syntax.
	DeleteByPrefix(ctx context.Context, pattern string) (int, error)
	// Increment adds one to the counter at key. A new counter expires after
	// ttl; later increments do not extend it.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
