package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNil is returned by reads of a missing key.
	ErrNil = redis.Nil

	ErrClientClosed   = redis.ErrClosed
	ErrInvalidConfig  = errors.New("redis: invalid configuration")
	ErrEmptyAddrs     = errors.New("redis: addrs cannot be empty")
	ErrInvalidTimeout = errors.New("redis: invalid timeout value")
)
