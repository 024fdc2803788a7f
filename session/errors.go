package session

import (
	"github.com/kochabx/portal/errors"
	"github.com/kochabx/portal/store/db"
)

var (
	ErrNoToken            = errors.NewReason(401, "NO_TOKEN", "authentication required")
	ErrTokenExpired       = errors.NewReason(401, "TOKEN_EXPIRED", "access token expired")
	ErrInvalidToken       = errors.NewReason(401, "INVALID_TOKEN", "access token is invalid")
	ErrInvalidSession     = errors.NewReason(401, "INVALID_SESSION", "session is no longer valid")
	ErrInvalidCredentials = errors.NewReason(401, "INVALID_CREDENTIALS", "invalid email or password")
	ErrAccountDisabled    = errors.Forbidden("account is disabled or awaiting approval")
	ErrUnavailable        = errors.ServiceUnavailable("service temporarily unavailable, please retry")
)

// storageError classifies a store failure: spent retries on a transient
// failure are 503, anything else 500. The cause is kept for logging.
func storageError(err error) error {
	if errors.Is(err, db.ErrUnavailable) {
		return ErrUnavailable.WithCause(err)
	}
	return errors.Internal("session storage failure").WithCause(err)
}
