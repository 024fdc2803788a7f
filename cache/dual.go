package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/kochabx/portal/log"
	storeredis "github.com/kochabx/portal/store/redis"
)

// Dual proxies to a remote cache and falls back to an in-process Memory when
// the remote fails. A background probe switches back once the remote answers
// PING again; the local entries are dropped at that point so a later outage
// does not resurrect stale values.
type Dual struct {
	remote   Cache
	local    *Memory
	degraded atomic.Bool
	probe    *storeredis.HealthChecker
	interval time.Duration
	logger   *log.Logger
	onState  func(degraded bool)
}

type DualOption func(*Dual)

func WithLogger(l *log.Logger) DualOption {
	return func(d *Dual) {
		d.logger = l
	}
}

// WithStateListener is called on every switch between remote and local.
func WithStateListener(fn func(degraded bool)) DualOption {
	return func(d *Dual) {
		d.onState = fn
	}
}

// WithProbeInterval sets how often a degraded cache retries the remote.
func WithProbeInterval(interval time.Duration) DualOption {
	return func(d *Dual) {
		d.interval = interval
	}
}

// NewDual combines remote with local. A nil remote means the local cache is
// used exclusively and the cache never reports itself degraded.
func NewDual(remote Cache, local *Memory, opts ...DualOption) *Dual {
	if local == nil {
		local = NewMemory()
	}
	d := &Dual{remote: remote, local: local, interval: 10 * time.Second}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = log.OrGlobal(d.logger).Component("cache")

	if d.remote != nil {
		d.probe = storeredis.NewHealthChecker(d.remote, d.interval, d.logger)
		d.probe.OnChange(func(healthy bool) {
			if healthy {
				d.restore()
			} else {
				d.degrade(errors.New("health probe failed"))
			}
		})
		d.probe.Start()
	}
	return d
}

// Degraded reports whether requests are currently served locally.
func (d *Dual) Degraded() bool {
	return d.degraded.Load()
}

// Remote reports whether a remote cache is configured.
func (d *Dual) Remote() bool {
	return d.remote != nil
}

func (d *Dual) useRemote() bool {
	return d.remote != nil && !d.degraded.Load()
}

func (d *Dual) degrade(cause error) {
	if d.degraded.CompareAndSwap(false, true) {
		d.logger.Warn().Err(cause).Msg("remote cache unavailable, serving from memory")
		if d.onState != nil {
			d.onState(true)
		}
	}
}

func (d *Dual) restore() {
	if d.degraded.CompareAndSwap(true, false) {
		d.local.Flush()
		d.logger.Info().Msg("remote cache restored")
		if d.onState != nil {
			d.onState(false)
		}
	}
}

// failed decides whether err from the remote should trigger the fallback.
// Misses are answers, and a cancelled caller says nothing about the remote.
func (d *Dual) failed(ctx context.Context, err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
		return false
	}
	d.degrade(err)
	if d.probe != nil {
		d.probe.Report(err)
	}
	return true
}

func (d *Dual) Get(ctx context.Context, key string) ([]byte, error) {
	if d.useRemote() {
		v, err := d.remote.Get(ctx, key)
		if !d.failed(ctx, err) {
			return v, err
		}
	}
	return d.local.Get(ctx, key)
}

func (d *Dual) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.useRemote() {
		err := d.remote.Set(ctx, key, value, ttl)
		if !d.failed(ctx, err) {
			return err
		}
	}
	return d.local.Set(ctx, key, value, ttl)
}

func (d *Dual) Delete(ctx context.Context, key string) error {
	// local copies may exist from an earlier outage
	_ = d.local.Delete(ctx, key)
	if d.useRemote() {
		err := d.remote.Delete(ctx, key)
		if !d.failed(ctx, err) {
			return err
		}
	}
	return nil
}

func (d *Dual) DeleteByPrefix(ctx context.Context, pattern string) (int, error) {
	n, _ := d.local.DeleteByPrefix(ctx, pattern)
	if d.useRemote() {
		rn, err := d.remote.DeleteByPrefix(ctx, pattern)
		if !d.failed(ctx, err) {
			return n + rn, err
		}
	}
	return n, nil
}

func (d *Dual) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if d.useRemote() {
		n, err := d.remote.Increment(ctx, key, ttl)
		if !d.failed(ctx, err) {
			return n, err
		}
	}
	return d.local.Increment(ctx, key, ttl)
}

// Ping reports the health of the remote; the local cache is always up.
func (d *Dual) Ping(ctx context.Context) error {
	if d.remote == nil {
		return nil
	}
	return d.remote.Ping(ctx)
}

func (d *Dual) Close() error {
	if d.probe != nil {
		d.probe.Stop()
	}
	var err error
	if d.remote != nil {
		err = d.remote.Close()
	}
	return errors.Join(err, d.local.Close())
}
