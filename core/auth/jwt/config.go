package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config of the access credential. Only HMAC methods are accepted: the
// issuer and the verifier are the same process.
type Config struct {
	Secret        string        `mapstructure:"secret" json:"-" validate:"required,min=32"`
	SigningMethod string        `mapstructure:"signing_method" default:"HS256" validate:"oneof=HS256 HS384 HS512"`
	AccessTTL     time.Duration `mapstructure:"access_ttl" default:"15m" validate:"gt=0"`
	Issuer        string        `mapstructure:"issuer" default:"portal"`
	Audience      []string      `mapstructure:"audience"`
	// tolerated clock skew when checking exp and iat
	Leeway time.Duration `mapstructure:"leeway" default:"5s"`
}

func (c *Config) GetSigningMethod() jwt.SigningMethod {
	switch c.SigningMethod {
	case "HS384":
		return jwt.SigningMethodHS384
	case "HS512":
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}

func (c *Config) GetSecret() []byte {
	return []byte(c.Secret)
}
