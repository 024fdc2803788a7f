package rate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/portal/cache"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLimiter(t *testing.T, cfg Config) (*Limiter, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l, err := New(cache.NewMemory(cache.WithClock(clk.Now)), cfg, WithClock(clk.Now))
	require.NoError(t, err)
	return l, clk
}

var client = Identity{IP: "203.0.113.7"}

func TestLoginBudget(t *testing.T) {
	l, _ := newLimiter(t, Config{Enabled: true})
	ctx := context.Background()

	for i := 1; i <= 100; i++ {
		res := l.Consume(ctx, client, BucketLogin)
		require.True(t, res.Allowed, "consume %d", i)
		assert.Equal(t, 100-i, res.Remaining)
	}

	res := l.Consume(ctx, client, BucketLogin)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfterSeconds(), 0)
	assert.Equal(t, 15*time.Minute, res.RetryAfter)
}

func TestBlockThenFreshWindow(t *testing.T) {
	l, clk := newLimiter(t, Config{Enabled: true, Buckets: map[string]Policy{
		BucketRefresh: {Points: 2, Window: time.Minute, Block: 5 * time.Minute},
	}})
	ctx := context.Background()

	assert.True(t, l.Consume(ctx, client, BucketRefresh).Allowed)
	assert.True(t, l.Consume(ctx, client, BucketRefresh).Allowed)
	assert.False(t, l.Consume(ctx, client, BucketRefresh).Allowed)

	// the block outlives the window
	clk.Advance(2 * time.Minute)
	res := l.Consume(ctx, client, BucketRefresh)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3*time.Minute, res.RetryAfter)

	clk.Advance(3 * time.Minute)
	res = l.Consume(ctx, client, BucketRefresh)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestWindowResets(t *testing.T) {
	l, clk := newLimiter(t, Config{Enabled: true, Buckets: map[string]Policy{
		BucketGeneral: {Points: 1, Window: time.Minute, Block: 0},
	}})
	ctx := context.Background()

	assert.True(t, l.Consume(ctx, client, "anything").Allowed)
	res := l.Consume(ctx, client, BucketGeneral)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)

	clk.Advance(time.Minute)
	assert.True(t, l.Consume(ctx, client, BucketGeneral).Allowed)
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l, _ := newLimiter(t, Config{Enabled: true, Buckets: map[string]Policy{
		BucketLogin: {Points: 1, Window: time.Minute, Block: time.Minute},
	}})
	ctx := context.Background()

	phone := Identity{IP: client.IP, DeviceID: "phone"}
	assert.True(t, l.Consume(ctx, client, BucketLogin).Allowed)
	assert.False(t, l.Consume(ctx, client, BucketLogin).Allowed)
	assert.True(t, l.Consume(ctx, phone, BucketLogin).Allowed)
	assert.True(t, l.Consume(ctx, client, BucketRefresh).Allowed)

	require.NoError(t, l.Reset(ctx, client, BucketLogin))
	assert.True(t, l.Consume(ctx, client, BucketLogin).Allowed)
}

func TestExempt(t *testing.T) {
	l, _ := newLimiter(t, Config{Enabled: true, TrustLoopback: true, AllowList: []string{"10.1.0.0/16", "192.0.2.1"}})

	assert.True(t, l.Exempt("127.0.0.1"))
	assert.True(t, l.Exempt("::1"))
	assert.True(t, l.Exempt("10.1.44.2"))
	assert.True(t, l.Exempt("192.0.2.1"))
	assert.True(t, l.Exempt("::ffff:192.0.2.1"))
	assert.False(t, l.Exempt("192.0.2.2"))
	assert.False(t, l.Exempt("not-an-ip"))

	strict, _ := newLimiter(t, Config{Enabled: true})
	assert.False(t, strict.Exempt("127.0.0.1"))

	off, _ := newLimiter(t, Config{Enabled: false})
	assert.True(t, off.Exempt("203.0.113.7"))
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(cache.NewMemory(), Config{AllowList: []string{"10.0.0.0/99"}})
	assert.Error(t, err)
	_, err = New(cache.NewMemory(), Config{Buckets: map[string]Policy{"login": {Points: 0, Window: time.Minute}}})
	assert.Error(t, err)
}

type brokenCache struct{ cache.Cache }

var errBroken = errors.New("dial tcp: connection refused")

func (brokenCache) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenCache) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errBroken
}

func TestFailOpen(t *testing.T) {
	l, err := New(brokenCache{}, Config{Enabled: true, Buckets: map[string]Policy{
		BucketLogin: {Points: 1, Window: time.Minute, Block: time.Minute},
	}})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		assert.True(t, l.Consume(context.Background(), client, BucketLogin).Allowed)
	}
}

func TestFailOpenWithDegradedDual(t *testing.T) {
	// a dual cache without a remote answers from memory and still limits
	d := cache.NewDual(nil, nil)
	defer d.Close()
	l, err := New(d, Config{Enabled: true, Buckets: map[string]Policy{
		BucketLogin: {Points: 1, Window: time.Minute, Block: time.Minute},
	}})
	require.NoError(t, err)

	assert.True(t, l.Consume(context.Background(), client, BucketLogin).Allowed)
	assert.False(t, l.Consume(context.Background(), client, BucketLogin).Allowed)
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "1.2.3.4", Identity{IP: "1.2.3.4"}.Key())
	assert.Equal(t, "unknown", Identity{}.Key())

	k := Identity{IP: "1.2.3.4", DeviceID: "dev:with*glob"}.Key()
	assert.NotContains(t, k, "*")
	assert.Len(t, k, len("1.2.3.4:")+16)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := newLimiter(t, Config{Enabled: true, Buckets: map[string]Policy{
		BucketTokenStatus: {Points: 1, Window: time.Minute, Block: 30 * time.Second},
	}})

	r := gin.New()
	r.GET("/status", Middleware(l, BucketTokenStatus), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"RATE_LIMIT_EXCEEDED"`)
}
