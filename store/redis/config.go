package redis

import (
	"time"

	"github.com/kochabx/portal/core/tag"
)

// Config covers single node, cluster and sentinel deployments. The mode is
// derived from Addrs and MasterName.
type Config struct {
	// single: ["localhost:6379"], cluster: several nodes, sentinel: sentinel
	// addresses plus MasterName
	Addrs      []string `mapstructure:"addrs" default:"localhost:6379"`
	MasterName string   `mapstructure:"master_name"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	// ignored in cluster mode
	DB       int `mapstructure:"db"`
	Protocol int `mapstructure:"protocol" default:"3"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout" default:"2s"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" default:"1s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"1s"`

	// 0 means 10 * GOMAXPROCS
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxIdleTime  time.Duration `mapstructure:"max_idle_time" default:"5m"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout" default:"2s"`

	// -1 disables retries
	MaxRetries      int           `mapstructure:"max_retries" default:"1"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff" default:"8ms"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff" default:"512ms"`

	MaxRedirects int  `mapstructure:"max_redirects" default:"3"`
	ReadOnly     bool `mapstructure:"read_only"`
}

func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

func Single(addr string) *Config {
	return &Config{Addrs: []string{addr}}
}

func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return ErrEmptyAddrs
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func (c *Config) IsSentinel() bool {
	return c.MasterName != ""
}

func (c *Config) IsCluster() bool {
	return len(c.Addrs) > 1 && c.MasterName == ""
}

func (c *Config) Mode() string {
	switch {
	case c.IsSentinel():
		return "sentinel"
	case c.IsCluster():
		return "cluster"
	default:
		return "single"
	}
}
