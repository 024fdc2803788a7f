// Package conf is the configuration schema of the portal service.
package conf

import (
	"time"

	"github.com/kochabx/portal/config"
	"github.com/kochabx/portal/core/auth/jwt"
	"github.com/kochabx/portal/core/rate"
	"github.com/kochabx/portal/csrf"
	"github.com/kochabx/portal/log"
	mw "github.com/kochabx/portal/middleware/http"
	"github.com/kochabx/portal/session"
	"github.com/kochabx/portal/store/db"
	"github.com/kochabx/portal/store/kafka"
	"github.com/kochabx/portal/store/redis"
	transporthttp "github.com/kochabx/portal/transport/http"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	EnvPrefix = "PORTAL"
)

type Config struct {
	Env string `mapstructure:"env" default:"development" validate:"oneof=development production"`

	Log     log.Config           `mapstructure:"log"`
	HTTP    transporthttp.Config `mapstructure:"http"`
	Cors    mw.CorsConfig        `mapstructure:"cors"`
	Metrics MetricsConfig        `mapstructure:"metrics"`

	DB    db.Config   `mapstructure:"db"`
	Cache CacheConfig `mapstructure:"cache"`

	JWT     jwt.Config     `mapstructure:"jwt"`
	Session session.Config `mapstructure:"session"`
	Cookie  CookieConfig   `mapstructure:"cookie"`
	Rate    rate.Config    `mapstructure:"rate"`
	CSRF    csrf.Config    `mapstructure:"csrf"`

	Users  UserConfig   `mapstructure:"users"`
	Purge  PurgeConfig  `mapstructure:"purge"`
	Notify NotifyConfig `mapstructure:"notify"`
}

type MetricsConfig struct {
	Enabled     bool `mapstructure:"enabled" default:"true"`
	GoCollector bool `mapstructure:"go_collector"`
	BuildInfo   bool `mapstructure:"build_info" default:"true"`
}

// CacheConfig configures the shared cache. Without Redis the service runs
// on the in-process cache alone.
type CacheConfig struct {
	Redis         bool          `mapstructure:"redis"`
	KeyPrefix     string        `mapstructure:"key_prefix" default:"portal:"`
	OpTimeout     time.Duration `mapstructure:"op_timeout" default:"2s" validate:"gt=0"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" default:"5s" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" default:"1m"`
	Tracing       bool          `mapstructure:"tracing"`
	RedisConfig   redis.Config  `mapstructure:"redis_config"`
}

// CookieConfig is the refresh credential cookie.
type CookieConfig struct {
	Name     string `mapstructure:"name" default:"refresh_token"`
	Domain   string `mapstructure:"domain"`
	Path     string `mapstructure:"path" default:"/"`
	Secure   bool   `mapstructure:"secure"`
	SameSite string `mapstructure:"same_site" default:"lax" validate:"oneof=lax strict none"`
}

type UserConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" default:"5m"`
}

type PurgeConfig struct {
	Enabled  bool          `mapstructure:"enabled" default:"true"`
	Schedule string        `mapstructure:"schedule" default:"@every 1h"`
	Timeout  time.Duration `mapstructure:"timeout" default:"1m"`
}

type NotifyConfig struct {
	Driver   string        `mapstructure:"driver" default:"log" validate:"oneof=log kafka webhook none"`
	Topic    string        `mapstructure:"topic" default:"portal.notifications"`
	PoolSize int           `mapstructure:"pool_size" default:"16" validate:"gt=0"`
	Timeout  time.Duration `mapstructure:"timeout" default:"10s"`
	Kafka    kafka.Config  `mapstructure:"kafka"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration     `mapstructure:"timeout" default:"5s"`
	Headers map[string]string `mapstructure:"headers"`
}

func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

// Load reads path (optional) plus PORTAL_* variables into a Config. The
// returned loader can be used to watch the file.
func Load(path string) (*Config, *config.Config, error) {
	cfg := new(Config)
	opts := []config.Option{config.WithEnvPrefix(EnvPrefix), config.WithOptionalFile()}
	if path != "" {
		opts = append(opts, config.WithFile(path))
	}
	loader := config.New(cfg, opts...)
	if err := loader.Load(); err != nil {
		return nil, nil, err
	}
	cfg.harden()
	return cfg, loader, nil
}

// harden forces cookie flags that must hold in production whatever the
// file says.
func (c *Config) harden() {
	if !c.Production() {
		return
	}
	c.Cookie.Secure = true
	c.CSRF.Secure = true
}
