package cache

import (
	"context"
	_ "embed"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	storeredis "github.com/kochabx/portal/store/redis"
)

//go:embed scripts/incr.lua
var incrSource string

var incrScript = redis.NewScript(incrSource)

const scanCount = 500

// Redis stores entries in Redis under an optional key prefix. Every command
// runs with its own timeout so a hung server cannot stall a request.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

type RedisOption func(*Redis)

// WithKeyPrefix namespaces every key, e.g. "portal:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func WithOpTimeout(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.opTimeout = d
		}
	}
}

func NewRedis(client *storeredis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client.UniversalClient(), opTimeout: 2 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return r.client.Del(ctx, r.prefix+key).Err()
}

// DeleteByPrefix walks the keyspace with SCAN, never KEYS, and unlinks the
// matches in batches. On a cluster every master is scanned.
func (r *Redis) DeleteByPrefix(ctx context.Context, pattern string) (int, error) {
	match := r.prefix + Pattern(pattern)

	if cc, ok := r.client.(*redis.ClusterClient); ok {
		var total atomic.Int64
		err := cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := r.scanDelete(ctx, node, match)
			total.Add(int64(n))
			return err
		})
		return int(total.Load()), err
	}
	return r.scanDelete(ctx, r.client, match)
}

// scanDelete collects every match first and unlinks afterwards; deleting
// while the cursor is open can skip keys on servers whose cursor is an
// offset. SCAN may repeat keys, so the count comes from UNLINK itself.
func (r *Redis) scanDelete(ctx context.Context, c redis.Cmdable, match string) (int, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		sctx, cancel := r.ctx(ctx)
		keys, next, err := c.Scan(sctx, cursor, match, scanCount).Result()
		cancel()
		if err != nil {
			return 0, err
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	total := 0
	for len(keys) > 0 {
		batch := keys[:min(len(keys), scanCount)]
		keys = keys[len(batch):]

		sctx, cancel := r.ctx(ctx)
		// one UNLINK per key keeps the batch valid across cluster slots
		cmds, err := c.Pipelined(sctx, func(p redis.Pipeliner) error {
			for _, k := range batch {
				p.Unlink(sctx, k)
			}
			return nil
		})
		cancel()
		for _, cmd := range cmds {
			if ic, ok := cmd.(*redis.IntCmd); ok {
				total += int(ic.Val())
			}
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Redis) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return incrScript.Run(ctx, r.client, []string{r.prefix + key}, max(ttl.Milliseconds(), 0)).Int64()
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close does not close the shared client; its owner does.
func (r *Redis) Close() error {
	return nil
}
