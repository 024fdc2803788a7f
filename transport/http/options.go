package http

import (
	"context"
	"time"

	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/metrics"
)

type Config struct {
	Addr              string        `mapstructure:"addr" default:":8080"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" default:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" default:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" default:"60s"`
	MetricsPath       string        `mapstructure:"metrics_path" default:"/metrics"`
	HealthPath        string        `mapstructure:"health_path" default:"/health"`
	// proxies whose X-Forwarded-For is believed; none by default
	TrustedProxies []string `mapstructure:"trusted_proxies" validate:"omitempty,dive,ip|cidr"`
}

// HealthFunc reports per-dependency states. The endpoint answers 503 when
// ok is false.
type HealthFunc func(ctx context.Context) (checks map[string]string, ok bool)

type Option func(*Server)

func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithHealth(fn HealthFunc) Option {
	return func(s *Server) {
		s.health = fn
	}
}
