package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeredis "github.com/kochabx/portal/store/redis"
)

func newRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := storeredis.New(storeredis.Single(mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, WithKeyPrefix("portal:"), WithOpTimeout(time.Second)), mr
}

func TestRedisGetSet(t *testing.T) {
	r, mr := newRedis(t)
	ctx := context.Background()

	_, err := r.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("portal:k"))

	got, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	mr.FastForward(time.Minute)
	_, err = r.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Set(ctx, "forever", []byte("v"), 0))
	assert.Equal(t, time.Duration(0), mr.TTL("portal:forever"))

	require.NoError(t, r.Delete(ctx, "forever"))
	assert.False(t, mr.Exists("portal:forever"))
}

func TestRedisDeleteByPrefix(t *testing.T) {
	r, mr := newRedis(t)
	ctx := context.Background()

	for i := 0; i < 1200; i++ {
		require.NoError(t, r.Set(ctx, fmt.Sprintf("posts:%d", i), []byte("v"), time.Minute))
	}
	require.NoError(t, r.Set(ctx, "labels:1", []byte("v"), time.Minute))
	require.NoError(t, mr.Set("other:posts:1", "v"))

	n, err := r.DeleteByPrefix(ctx, "posts:")
	require.NoError(t, err)
	assert.Equal(t, 1200, n)
	assert.True(t, mr.Exists("portal:labels:1"))
	assert.True(t, mr.Exists("other:posts:1"))
	assert.Len(t, mr.Keys(), 2)

	n, err = r.DeleteByPrefix(ctx, "posts:")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisIncrement(t *testing.T) {
	r, mr := newRedis(t)
	ctx := context.Background()

	n, err := r.Increment(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(30 * time.Second)
	n, err = r.Increment(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 30*time.Second, mr.TTL("portal:rl:login:1.2.3.4"))

	mr.FastForward(30 * time.Second)
	n, err = r.Increment(ctx, "rl:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisUnavailable(t *testing.T) {
	r, mr := newRedis(t)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, r.Ping(ctx))
	_, err := r.Get(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
