package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/core/util/id"
)

const (
	HeaderRequestID = "X-Request-Id"
	requestIDKey    = "request.id"
)

// RequestID keeps a printable client supplied X-Request-Id and assigns a
// fresh one otherwise. The id is echoed in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := id.OrNew(c.GetHeader(HeaderRequestID))
		c.Set(requestIDKey, rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, if any.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
