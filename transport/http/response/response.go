// Package response writes handler results. Successful responses carry the
// payload as is; failures carry {code, message} with the HTTP status taken
// from the error.
package response

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/errors"
)

const internalMessage = "internal server error"

// MetaRetryAfter in an error's metadata becomes the Retry-After header of a
// 429 response.
const MetaRetryAfter = "retry_after"

type Body struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (b *Body) reset() {
	b.Code = ""
	b.Message = ""
	b.Metadata = nil
}

var bodyPool = sync.Pool{
	New: func() any {
		return &Body{}
	},
}

func acquireBody() *Body {
	return bodyPool.Get().(*Body)
}

func releaseBody(b *Body) {
	if b != nil {
		b.reset()
		bodyPool.Put(b)
	}
}

// JSON writes data with 200.
func JSON(c *gin.Context, data any) {
	if c == nil {
		return
	}
	c.JSON(http.StatusOK, data)
}

func NoContent(c *gin.Context) {
	if c == nil {
		return
	}
	c.Status(http.StatusNoContent)
}

// Error aborts the chain and writes err. Unknown errors become a 500 whose
// message does not leak the cause; the cause is attached to the gin context
// for the access log.
func Error(c *gin.Context, err error) {
	if c == nil {
		return
	}
	if err == nil {
		err = errors.Internal(internalMessage)
	}
	_ = c.Error(err)

	e := errors.FromError(err)
	code := e.Code
	if code < 400 || code > 599 {
		code = http.StatusInternalServerError
	}

	body := acquireBody()
	defer releaseBody(body)

	body.Code = e.Reason
	body.Message = e.Message
	body.Metadata = e.Metadata
	if body.Code == "" {
		body.Code = errors.UnknownReason
	}
	if v := e.Metadata[MetaRetryAfter]; v != "" && code == http.StatusTooManyRequests {
		c.Header("Retry-After", v)
	}
	if code == http.StatusInternalServerError {
		body.Code = errors.UnknownReason
		body.Message = internalMessage
		body.Metadata = nil
	}

	c.AbortWithStatusJSON(code, body)
}
