// Package config loads a typed configuration struct from a file, the
// environment and `default` struct tags, and keeps it current when the file
// changes.
package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/kochabx/portal/core/validator"
	"github.com/kochabx/portal/log"
)

// Loader fills a target struct and reports later changes.
type Loader interface {
	Load(target any) error
	Watch(callback func()) error
}

// Config manages one configuration target.
type Config struct {
	mu        sync.RWMutex
	viper     *viper.Viper
	validate  validator.Validator
	target    any
	loader    Loader
	onChange  []func()
	envPrefix string
	name      string
	paths     []string
	optional  bool
}

// New creates a Config for target. Without WithLoader a FileLoader reading
// config.yaml from the working directory is used.
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:    viper.New(),
		validate: validator.Validate,
		target:   target,
		name:     "config.yaml",
		paths:    []string{"."},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.loader == nil {
		fl := NewFileLoader(c.name, c.paths, c.viper, c.validate)
		fl.envPrefix = c.envPrefix
		fl.optional = c.optional
		c.loader = fl
	}
	return c
}

func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loader.Load(c.target)
}

// Reload loads the configuration again and runs the change callbacks.
func (c *Config) Reload() error {
	if err := c.Load(); err != nil {
		return err
	}

	c.mu.RLock()
	callbacks := c.onChange
	c.mu.RUnlock()
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnChange registers fn to run after every successful reload.
func (c *Config) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// Read runs fn while holding the read lock so fn sees a consistent target.
func (c *Config) Read(fn func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn()
}

// Watch reloads the target whenever the loader reports a change.
func (c *Config) Watch() error {
	return c.loader.Watch(func() {
		log.Info().Msg("config change detected")
		if err := c.Reload(); err != nil {
			log.Error().Err(err).Msg("failed to reload config after change")
			return
		}
		log.Info().Msg("config reloaded")
	})
}

func (c *Config) GetViper() *viper.Viper {
	return c.viper
}
