package db

import "errors"

var (
	ErrUnsupportedDriver = errors.New("db: unsupported driver")
	ErrInvalidConfig     = errors.New("db: invalid config")
	ErrNotInitialized    = errors.New("db: not initialized")
	// ErrUnavailable wraps the last transient error once retries are spent.
	ErrUnavailable = errors.New("db: unavailable")
)
