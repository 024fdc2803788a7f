package redis

import (
	"context"
	"runtime"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/portal/log"
)

// Client wraps a redis.UniversalClient built from Config.
type Client struct {
	client redis.UniversalClient
	config *Config
	logger *log.Logger
}

// New creates a client and, unless WithLazyConnect is given, verifies the
// connection with PING.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	client := &Client{
		config: cfg,
		logger: log.OrGlobal(o.logger),
		client: redis.NewUniversalClient(buildUniversalOptions(cfg)),
	}

	var success bool
	defer func() {
		if !success {
			_ = client.client.Close()
		}
	}()

	if err := client.setupHooks(o); err != nil {
		return nil, err
	}
	if !o.lazy {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
	}

	success = true
	client.logger.Debug().Str("mode", cfg.Mode()).Strs("addrs", cfg.Addrs).Msg("redis client created")
	return client, nil
}

// NewFromUniversal wraps an existing client, mainly for tests.
func NewFromUniversal(c redis.UniversalClient, logger *log.Logger) *Client {
	return &Client{client: c, config: &Config{}, logger: log.OrGlobal(logger)}
}

func buildUniversalOptions(cfg *Config) *redis.UniversalOptions {
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 10 * runtime.GOMAXPROCS(0)
	}

	return &redis.UniversalOptions{
		Addrs:      cfg.Addrs,
		MasterName: cfg.MasterName,
		Username:   cfg.Username,
		Password:   cfg.Password,
		DB:         cfg.DB,
		Protocol:   cfg.Protocol,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		PoolSize:        poolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxIdleTime: cfg.MaxIdleTime,
		PoolTimeout:     cfg.PoolTimeout,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,

		MaxRedirects: cfg.MaxRedirects,
		ReadOnly:     cfg.ReadOnly,
	}
}

func (c *Client) setupHooks(o *clientOptions) error {
	for _, hook := range o.hooks {
		c.client.AddHook(hook)
	}
	if o.enableTracing {
		if err := redisotel.InstrumentTracing(c.client, o.tracingOpts...); err != nil {
			return err
		}
	}
	if o.enableMetrics {
		if err := redisotel.InstrumentMetrics(c.client, o.metricsOpts...); err != nil {
			return err
		}
	}
	if o.enableDebug {
		c.client.AddHook(NewDebugHook(c.logger, o.slowQueryThresh))
	}
	return nil
}

// UniversalClient returns the underlying client for issuing commands.
func (c *Client) UniversalClient() redis.UniversalClient {
	return c.client
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	err := c.client.Close()
	c.logger.Debug().Msg("redis client closed")
	return err
}

func (c *Client) Stats() *redis.PoolStats {
	return c.client.PoolStats()
}
