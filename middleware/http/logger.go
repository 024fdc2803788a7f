package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kochabx/portal/log"
)

type LoggerConfig struct {
	SkipPaths []string
	SkipFunc  func(*gin.Context) bool
	// requests slower than this are logged at warn
	SlowThreshold time.Duration
	Logger        *log.Logger
}

// Logger writes one access log line per request. Bodies and headers are
// never logged: they carry passwords, cookies and bearer credentials.
func Logger(cfgs ...LoggerConfig) gin.HandlerFunc {
	var cfg LoggerConfig
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	logger := log.OrGlobal(cfg.Logger).Component("http")
	matcher := NewPathMatcher(cfg.SkipPaths)

	return func(c *gin.Context) {
		if shouldSkip(c, matcher, cfg.SkipFunc) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case cfg.SlowThreshold > 0 && elapsed > cfg.SlowThreshold:
			event = logger.Warn().Bool("slow", true)
		default:
			event = logger.Info()
		}

		event = event.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP()).
			Int("size", c.Writer.Size())

		if rid := GetRequestID(c); rid != "" {
			event = event.Str("request_id", rid)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Send()
	}
}
