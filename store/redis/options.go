package redis

import (
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/portal/log"
)

type Option func(*clientOptions)

type clientOptions struct {
	hooks []redis.Hook

	enableMetrics bool
	enableTracing bool
	enableDebug   bool
	tracingOpts   []redisotel.TracingOption
	metricsOpts   []redisotel.MetricsOption

	logger          *log.Logger
	slowQueryThresh time.Duration
	lazy            bool
}

func WithHooks(hooks ...redis.Hook) Option {
	return func(o *clientOptions) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithMetrics enables the OpenTelemetry metrics instrumentation.
func WithMetrics(opts ...redisotel.MetricsOption) Option {
	return func(o *clientOptions) {
		o.enableMetrics = true
		o.metricsOpts = opts
	}
}

// WithTracing enables the OpenTelemetry tracing instrumentation.
func WithTracing(opts ...redisotel.TracingOption) Option {
	return func(o *clientOptions) {
		o.enableTracing = true
		o.tracingOpts = opts
	}
}

// WithDebug logs every command at debug level and commands slower than
// slowQueryThreshold at warn level.
func WithDebug(slowQueryThreshold ...time.Duration) Option {
	return func(o *clientOptions) {
		o.enableDebug = true
		if len(slowQueryThreshold) > 0 {
			o.slowQueryThresh = slowQueryThreshold[0]
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithLazyConnect skips the initial PING so that New succeeds while the
// server is unreachable. Callers are expected to cope with failing commands.
func WithLazyConnect() Option {
	return func(o *clientOptions) {
		o.lazy = true
	}
}
