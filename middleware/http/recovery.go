package middleware

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	perrors "github.com/kochabx/portal/errors"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/transport/http/response"
)

type RecoveryConfig struct {
	StackTrace bool
	Logger     *log.Logger
}

// Recovery turns a panic into a 500 with the usual error body.
func Recovery(cfgs ...RecoveryConfig) gin.HandlerFunc {
	cfg := RecoveryConfig{StackTrace: true}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	logger := log.OrGlobal(cfg.Logger).Component("http")

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if isBrokenPipe(rec) {
				logger.Warn().Str("error", fmt.Sprint(rec)).Str("path", c.Request.URL.Path).Msg("broken pipe")
				_ = c.Error(fmt.Errorf("%v", rec))
				c.Abort()
				return
			}

			event := logger.Error().
				Str("error", fmt.Sprint(rec)).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path)
			if cfg.StackTrace {
				event = event.Bytes("stack", debug.Stack())
			}
			event.Msg("panic recovered")

			response.Error(c, perrors.Internal("panic").WithCause(fmt.Errorf("%v", rec)))
		}()
		c.Next()
	}
}

func isBrokenPipe(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
