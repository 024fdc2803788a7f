package session

import "time"

const maxRememberTTL = 365 * 24 * time.Hour

type Config struct {
	RefreshTTL  time.Duration `mapstructure:"refresh_ttl" default:"168h" validate:"gt=0"`
	RememberTTL time.Duration `mapstructure:"remember_ttl" default:"720h" validate:"gt=0"`
	// revoke the subject's previous refresh credentials on login
	SingleSession bool `mapstructure:"single_session" default:"true"`
	NotifyOnLogin bool `mapstructure:"notify_on_login" default:"true"`
}

func (c *Config) refreshTTL(remember bool) time.Duration {
	ttl := c.RefreshTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if remember && c.RememberTTL > 0 {
		ttl = min(c.RememberTTL, maxRememberTTL)
	}
	return ttl
}
