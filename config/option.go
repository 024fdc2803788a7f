package config

import (
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/kochabx/portal/core/validator"
)

type Option func(*Config)

func WithViper(v *viper.Viper) Option {
	return func(c *Config) {
		c.viper = v
	}
}

func WithValidator(v validator.Validator) Option {
	return func(c *Config) {
		c.validate = v
	}
}

func WithLoader(loader Loader) Option {
	return func(c *Config) {
		c.loader = loader
	}
}

// WithFile points the default loader at path.
func WithFile(path string) Option {
	return func(c *Config) {
		c.name = filepath.Base(path)
		c.paths = []string{filepath.Dir(path)}
	}
}

// WithEnvPrefix makes PREFIX_SECTION_KEY override section.key.
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

// WithOptionalFile lets Load succeed on defaults and environment alone when
// the file does not exist.
func WithOptionalFile() Option {
	return func(c *Config) {
		c.optional = true
	}
}
