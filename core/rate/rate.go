// Package rate implements a fixed window limiter with a block period on top
// of cache.Cache. It fails open: when the cache cannot answer, requests are
// allowed.
package rate

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/kochabx/portal/cache"
	"github.com/kochabx/portal/log"
)

const (
	BucketLogin       = "login"
	BucketRefresh     = "refresh"
	BucketTokenStatus = "token_status"
	BucketGeneral     = "general"
)

// Policy is the budget of one bucket: Points consumptions per Window. The
// consumption that exceeds the budget blocks the identity for Block.
type Policy struct {
	Points int           `mapstructure:"points" validate:"gt=0"`
	Window time.Duration `mapstructure:"window" validate:"gt=0"`
	Block  time.Duration `mapstructure:"block" validate:"gte=0"`
}

func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		BucketLogin:       {Points: 100, Window: 15 * time.Minute, Block: 15 * time.Minute},
		BucketRefresh:     {Points: 60, Window: time.Minute, Block: time.Minute},
		BucketTokenStatus: {Points: 120, Window: time.Minute, Block: time.Minute},
		BucketGeneral:     {Points: 300, Window: time.Minute, Block: time.Minute},
	}
}

type Config struct {
	Enabled       bool              `mapstructure:"enabled" default:"true"`
	TrustLoopback bool              `mapstructure:"trust_loopback" default:"true"`
	AllowList     []string          `mapstructure:"allow_list"`
	KeyPrefix     string            `mapstructure:"key_prefix" default:"rl"`
	Buckets       map[string]Policy `mapstructure:"buckets" validate:"dive"`
}

// Result of one consumption. RetryAfter is zero when Allowed.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least one when
// the request was rejected.
func (r Result) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	return max(int((r.RetryAfter+time.Second-1)/time.Second), 1)
}

type Limiter struct {
	cache    cache.Cache
	enabled  bool
	loopback bool
	allow    []netip.Prefix
	prefix   string
	policies map[string]Policy
	now      func() time.Time
	logger   *log.Logger
}

type Option func(*Limiter)

func WithLogger(l *log.Logger) Option {
	return func(lim *Limiter) {
		lim.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(lim *Limiter) {
		lim.now = now
	}
}

// New builds a limiter; buckets missing from cfg keep their defaults.
func New(c cache.Cache, cfg Config, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		cache:    c,
		enabled:  cfg.Enabled,
		loopback: cfg.TrustLoopback,
		prefix:   cfg.KeyPrefix,
		policies: DefaultPolicies(),
		now:      time.Now,
	}
	if l.prefix == "" {
		l.prefix = "rl"
	}
	for name, p := range cfg.Buckets {
		if p.Points <= 0 || p.Window <= 0 || p.Block < 0 {
			return nil, fmt.Errorf("rate: invalid policy for bucket %q", name)
		}
		l.policies[name] = p
	}
	for _, s := range cfg.AllowList {
		prefix, err := parsePrefix(s)
		if err != nil {
			return nil, err
		}
		l.allow = append(l.allow, prefix)
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = log.OrGlobal(l.logger).Component("rate")
	return l, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("rate: invalid allow list entry %q: %w", s, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("rate: invalid allow list entry %q: %w", s, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Policy returns the policy of bucket, falling back to general.
func (l *Limiter) Policy(bucket string) (string, Policy) {
	if p, ok := l.policies[bucket]; ok {
		return bucket, p
	}
	return BucketGeneral, l.policies[BucketGeneral]
}

// Exempt reports whether ip bypasses the limiter entirely.
func (l *Limiter) Exempt(ip string) bool {
	if !l.enabled {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if l.loopback && addr.IsLoopback() {
		return true
	}
	for _, p := range l.allow {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (l *Limiter) keys(bucket string, id Identity) (counter, block string) {
	base := l.prefix + ":" + bucket + ":" + id.Key()
	return base, base + ":block"
}

// Consume takes one point from bucket for id.
func (l *Limiter) Consume(ctx context.Context, id Identity, bucket string) Result {
	bucket, policy := l.Policy(bucket)
	if l.Exempt(id.IP) {
		return Result{Allowed: true, Remaining: policy.Points}
	}

	counterKey, blockKey := l.keys(bucket, id)
	now := l.now()

	raw, err := l.cache.Get(ctx, blockKey)
	switch {
	case err == nil:
		if until, ok := parseUntil(raw); ok && until.After(now) {
			return Result{RetryAfter: until.Sub(now)}
		}
	case !errors.Is(err, cache.ErrNotFound):
		return l.failOpen(bucket, policy, err)
	}

	n, err := l.cache.Increment(ctx, counterKey, policy.Window)
	if err != nil {
		return l.failOpen(bucket, policy, err)
	}
	if n <= int64(policy.Points) {
		return Result{Allowed: true, Remaining: policy.Points - int(n)}
	}

	// budget exhausted: block, and start a fresh window once the block ends
	retry := policy.Block
	if retry > 0 {
		until := now.Add(policy.Block)
		if err := l.cache.Set(ctx, blockKey, []byte(strconv.FormatInt(until.UnixMilli(), 10)), policy.Block); err != nil {
			l.logger.Warn().Err(err).Str("bucket", bucket).Msg("rate limit block not recorded")
		}
		if err := l.cache.Delete(ctx, counterKey); err != nil {
			l.logger.Warn().Err(err).Str("bucket", bucket).Msg("rate limit counter not reset")
		}
	} else {
		retry = policy.Window
	}

	l.logger.Debug().Str("bucket", bucket).Str("ip", id.IP).Dur("retry_after", retry).Msg("rate limit exceeded")
	return Result{RetryAfter: retry}
}

// Reset clears the counter and block of id, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, id Identity, bucket string) error {
	bucket, _ = l.Policy(bucket)
	counterKey, blockKey := l.keys(bucket, id)
	_ = l.cache.Delete(ctx, blockKey)
	return l.cache.Delete(ctx, counterKey)
}

func (l *Limiter) failOpen(bucket string, p Policy, err error) Result {
	l.logger.Warn().Err(err).Str("bucket", bucket).Msg("rate limiter cache unavailable, allowing request")
	return Result{Allowed: true, Remaining: p.Points}
}

func parseUntil(raw []byte) (time.Time, bool) {
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
