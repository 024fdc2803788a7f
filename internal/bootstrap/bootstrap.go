// Package bootstrap builds the portal's components from configuration and
// owns their shutdown order.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kochabx/portal/app"
	"github.com/kochabx/portal/cache"
	"github.com/kochabx/portal/core/auth/jwt"
	nethttp "github.com/kochabx/portal/core/net/http"
	"github.com/kochabx/portal/core/rate"
	"github.com/kochabx/portal/credential"
	"github.com/kochabx/portal/csrf"
	"github.com/kochabx/portal/internal/conf"
	"github.com/kochabx/portal/internal/notify"
	"github.com/kochabx/portal/internal/server"
	"github.com/kochabx/portal/internal/user"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/metrics"
	"github.com/kochabx/portal/session"
	"github.com/kochabx/portal/store/db"
	"github.com/kochabx/portal/store/kafka"
	"github.com/kochabx/portal/store/redis"
	transporthttp "github.com/kochabx/portal/transport/http"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// Runtime holds every long lived component of the process.
type Runtime struct {
	Config *conf.Config
	Logger *log.Logger

	DB          *db.Client
	Redis       *redis.Client
	Cache       *cache.Dual
	Credentials *credential.DBStore
	Users       *user.Repository
	Issuer      *jwt.Issuer
	Limiter     *rate.Limiter
	Guard       *csrf.Guard
	Kafka       *kafka.Client
	Notifier    *notify.Dispatcher
	Sessions    *session.Manager
	Metrics     *metrics.Metrics
}

// closers lists what was built, consumers first and stores last.
func (r *Runtime) closers() []closer {
	var cs []closer
	if r.Notifier != nil {
		cs = append(cs, closer{"notify", r.Notifier.Close})
	}
	if r.Kafka != nil {
		cs = append(cs, closer{"kafka", closeFn(r.Kafka.Close)})
	}
	if r.Cache != nil {
		cs = append(cs, closer{"cache", closeFn(r.Cache.Close)})
	}
	if r.Redis != nil {
		cs = append(cs, closer{"redis", closeFn(r.Redis.Close)})
	}
	if r.DB != nil {
		cs = append(cs, closer{"db", closeFn(r.DB.Close)})
	}
	return cs
}

func closeFn(fn func() error) func(context.Context) error {
	return func(context.Context) error { return fn() }
}

// Build connects the stores and wires the components. On error everything
// built so far is closed again.
func Build(ctx context.Context, cfg *conf.Config, logger *log.Logger) (rt *Runtime, err error) {
	logger = log.OrGlobal(logger)
	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
			rt = nil
		}
	}()

	mopts := []metrics.Option{}
	if cfg.Metrics.GoCollector {
		mopts = append(mopts, metrics.WithGoCollector())
	}
	if cfg.Metrics.BuildInfo {
		mopts = append(mopts, metrics.WithBuildInfoCollector())
	}
	rt.Metrics = metrics.New(mopts...)

	if err = rt.buildStores(ctx); err != nil {
		return rt, err
	}
	if err = rt.buildSessions(); err != nil {
		return rt, err
	}
	return rt, nil
}

func (r *Runtime) buildStores(_ context.Context) error {
	cfg, logger := r.Config, r.Logger

	driver, err := cfg.DB.Selected()
	if err != nil {
		return err
	}
	if r.DB, err = db.New(driver, db.WithLogger(logger.Component("db")), db.WithSlowQuery(200*time.Millisecond)); err != nil {
		return err
	}

	var remote cache.Cache
	if cfg.Cache.Redis {
		ropts := []redis.Option{redis.WithLogger(logger.Component("redis")), redis.WithLazyConnect()}
		if cfg.Cache.Tracing {
			ropts = append(ropts, redis.WithTracing(), redis.WithMetrics())
		}
		if r.Redis, err = redis.New(&cfg.Cache.RedisConfig, ropts...); err != nil {
			return err
		}
		remote = cache.NewRedis(r.Redis, cache.WithKeyPrefix(cfg.Cache.KeyPrefix), cache.WithOpTimeout(cfg.Cache.OpTimeout))
	}
	var mopts []cache.MemoryOption
	if cfg.Cache.SweepInterval > 0 {
		mopts = append(mopts, cache.WithJanitor(cfg.Cache.SweepInterval))
	}
	r.Cache = cache.NewDual(remote, cache.NewMemory(mopts...),
		cache.WithLogger(logger),
		cache.WithProbeInterval(cfg.Cache.ProbeInterval),
		cache.WithStateListener(r.Metrics.CacheMode),
	)

	r.Credentials = credential.NewStore(r.DB,
		credential.WithRetry(cfg.DB.Retry),
		credential.WithTimeout(cfg.DB.Timeout),
		credential.WithLogger(logger),
	)
	r.Users = user.NewRepository(r.DB,
		user.WithCache(r.Cache, cfg.Users.CacheTTL),
		user.WithRetry(cfg.DB.Retry),
		user.WithTimeout(cfg.DB.Timeout),
		user.WithLogger(logger),
	)
	return nil
}

func (r *Runtime) buildSessions() error {
	cfg, logger := r.Config, r.Logger
	var err error

	if r.Issuer, err = jwt.New(&cfg.JWT); err != nil {
		return err
	}
	if r.Limiter, err = rate.New(r.Cache, cfg.Rate, rate.WithLogger(logger)); err != nil {
		return err
	}
	if r.Guard, err = csrf.New(cfg.CSRF, csrf.WithLogger(logger)); err != nil {
		return err
	}

	var sink notify.Sink
	switch cfg.Notify.Driver {
	case "kafka":
		if r.Kafka, err = kafka.New(&cfg.Notify.Kafka, kafka.WithLogger(logger.Component("kafka"))); err != nil {
			return err
		}
		sink = notify.NewKafkaSink(r.Kafka, cfg.Notify.Topic)
	case "webhook":
		if cfg.Notify.Webhook.URL == "" {
			return errors.New("notify.webhook.url is required")
		}
		client := nethttp.New(nethttp.WithTimeout(cfg.Notify.Webhook.Timeout), nethttp.WithHeader(cfg.Notify.Webhook.Headers))
		sink = notify.NewWebhookSink(client, cfg.Notify.Webhook.URL)
	case "log":
		sink = notify.NewLogSink(logger)
	}

	sopts := []session.Option{
		session.WithLimiter(r.Limiter),
		session.WithRevokeHook(func(ctx context.Context, id string) { r.Users.Invalidate(ctx, id) }),
		session.WithObserver(r.Metrics.ObserveSession),
		session.WithLogger(logger),
	}
	if sink != nil {
		if r.Notifier, err = notify.New(sink, cfg.Notify.PoolSize, notify.WithTimeout(cfg.Notify.Timeout), notify.WithLogger(logger)); err != nil {
			return err
		}
		sopts = append(sopts, session.WithNotifier(r.Notifier))
	}
	r.Sessions = session.NewManager(cfg.Session, r.Credentials, r.Users, r.Issuer, sopts...)
	return nil
}

// Migrate creates or updates the tables.
func (r *Runtime) Migrate(ctx context.Context) error {
	if err := r.Users.Migrate(ctx); err != nil {
		return err
	}
	return r.Credentials.Migrate(ctx)
}

// Purger builds the scheduled cleanup of expired credentials.
func (r *Runtime) Purger() (*credential.Purger, error) {
	return credential.NewPurger(r.Credentials, r.Config.Purge.Schedule,
		credential.WithPurgeTimeout(r.Config.Purge.Timeout),
		credential.WithPurgerLogger(r.Logger),
		credential.WithPurgeHook(r.Metrics.PurgeResult),
	)
}

// Server builds the HTTP server around the session components.
func (r *Runtime) Server() (*transporthttp.Server, error) {
	cfg := r.Config
	handler := server.New(server.Deps{
		Sessions: r.Sessions,
		Users:    r.Users,
		Guard:    r.Guard,
		Limiter:  r.Limiter,
		Cache:    r.Cache,
		Metrics:  r.Metrics,
		Logger:   r.Logger,
	}, server.Options{
		Cookie: cfg.Cookie,
		Cors:   cfg.Cors,
		Quiet:  []string{cfg.HTTP.HealthPath, cfg.HTTP.MetricsPath},

		TrustedProxies: cfg.HTTP.TrustedProxies,
	}).Router()

	opts := []transporthttp.Option{
		transporthttp.WithLogger(r.Logger),
		transporthttp.WithHealth(server.Health(r.DB, r.Cache)),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics(r.Metrics))
	}
	return transporthttp.NewServer(cfg.HTTP, handler, opts...)
}

// App assembles the runnable application: the HTTP server, the purge job
// and the shutdown of everything Build created.
func (r *Runtime) App(ctx context.Context) (*app.Application, error) {
	srv, err := r.Server()
	if err != nil {
		return nil, err
	}
	opts := []app.Option{
		app.WithContext(ctx),
		app.WithLogger(r.Logger),
		app.WithServer(srv),
		app.WithShutdownTimeout(15 * time.Second),
	}

	if r.Config.Purge.Enabled {
		p, err := r.Purger()
		if err != nil {
			return nil, err
		}
		p.Start()
		opts = append(opts, app.WithClose("purger", p.Stop, 0))
	}
	for _, c := range r.closers() {
		opts = append(opts, app.WithClose(c.name, c.fn, 0))
	}
	return app.New(opts...), nil
}

// Close releases everything in shutdown order, for commands that do not run
// the application. An application built by App closes the same components
// itself.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for _, c := range r.closers() {
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
