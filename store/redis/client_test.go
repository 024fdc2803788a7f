package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSingle(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(Single(mr.Addr()), WithDebug(time.Second))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.UniversalClient().Set(ctx, "k", "v", 0).Err())
	got, err := c.UniversalClient().Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = c.UniversalClient().Get(ctx, "missing").Result()
	assert.ErrorIs(t, err, ErrNil)
}

func TestNewUnreachable(t *testing.T) {
	cfg := Single("127.0.0.1:1")
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.MaxRetries = -1

	_, err := New(cfg)
	assert.Error(t, err)

	c, err := New(Single("127.0.0.1:1"), WithLazyConnect())
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestConfig(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).Validate(), ErrEmptyAddrs)
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := &Config{}
	require.NoError(t, cfg.ApplyDefaults())
	assert.Equal(t, []string{"localhost:6379"}, cfg.Addrs)
	assert.Equal(t, "single", cfg.Mode())
	assert.Equal(t, "cluster", (&Config{Addrs: []string{"a", "b"}}).Mode())
	assert.Equal(t, "sentinel", (&Config{Addrs: []string{"a"}, MasterName: "m"}).Mode())
}

type flakyPinger struct{ down atomic.Bool }

func (p *flakyPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestHealthCheckerTransitions(t *testing.T) {
	p := &flakyPinger{}
	hc := NewHealthChecker(p, time.Hour, nil)

	var events []bool
	hc.OnChange(func(healthy bool) { events = append(events, healthy) })

	ctx := context.Background()
	assert.True(t, hc.Check(ctx).Healthy)
	hc.Check(ctx)
	p.down.Store(true)
	assert.False(t, hc.Check(ctx).Healthy)
	hc.Check(ctx)
	p.down.Store(false)
	hc.Check(ctx)

	assert.Equal(t, []bool{true, false, true}, events)
	assert.True(t, hc.IsHealthy())
}

func TestHealthCheckerStartStop(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(Single(mr.Addr()))
	require.NoError(t, err)
	defer c.Close()

	hc := NewHealthChecker(c, 10*time.Millisecond, nil)
	hc.Start()
	hc.Start()
	assert.True(t, hc.IsHealthy())

	mr.Close()
	assert.Eventually(t, func() bool { return !hc.IsHealthy() }, 2*time.Second, 10*time.Millisecond)
	hc.Stop()
	hc.Stop()
}
