package credential

import "errors"

var (
	// ErrNotFound covers absent, revoked and expired credentials alike.
	ErrNotFound      = errors.New("credential: not found")
	ErrEmptySecret   = errors.New("credential: empty secret")
	ErrEmptySubject  = errors.New("credential: empty subject")
	ErrInvalidTTL    = errors.New("credential: ttl must be positive")
	ErrInvalidParams = errors.New("credential: invalid params")
)
