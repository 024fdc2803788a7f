package rate

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/errors"
	"github.com/kochabx/portal/transport/http/response"
)

// ErrLimited is the response body of a rejected request.
var ErrLimited = errors.TooManyRequests("too many requests, please try again later")

// Err is nil when the request was allowed, otherwise ErrLimited carrying the
// retry delay in seconds.
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}
	return ErrLimited.WithMetadata(map[string]string{
		response.MetaRetryAfter: strconv.Itoa(r.RetryAfterSeconds()),
	})
}

// IdentityFromContext reads the client address and X-Device-Id.
func IdentityFromContext(c *gin.Context) Identity {
	return Identity{IP: c.ClientIP(), DeviceID: c.GetHeader(DeviceHeader)}
}

// Middleware consumes a point from bucket before the handler runs and
// answers 429 with Retry-After once the budget is spent.
func Middleware(l *Limiter, bucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := l.Consume(c.Request.Context(), IdentityFromContext(c), bucket)
		if !res.Allowed {
			response.Error(c, res.Err())
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}
