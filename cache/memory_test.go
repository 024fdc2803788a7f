package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestMemoryGetSet(t *testing.T) {
	clock := newClock()
	m := NewMemory(WithClock(clock.Now))
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// returned slices are copies
	got[0] = 'x'
	got, _ = m.Get(ctx, "k")
	assert.Equal(t, []byte("v"), got)

	clock.Advance(time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryNoExpiry(t *testing.T) {
	clock := newClock()
	m := NewMemory(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	clock.Advance(24 * time.Hour * 365)
	_, err := m.Get(ctx, "k")
	assert.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeleteByPrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, k := range []string{"posts:1", "posts:2", "posts:1:labels", "labels:1", "postsx"} {
		require.NoError(t, m.Set(ctx, k, []byte("v"), time.Minute))
	}

	n, err := m.DeleteByPrefix(ctx, "posts:")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, m.Len())

	n, err = m.DeleteByPrefix(ctx, "label?:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryIncrementFixedWindow(t *testing.T) {
	clock := newClock()
	m := NewMemory(WithClock(clock.Now))
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := m.Increment(ctx, "c", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		clock.Advance(20 * time.Second)
	}

	// window started at the first increment and is not extended
	n, err := m.Increment(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryConcurrentIncrement(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Increment(ctx, "c", time.Minute)
		}()
	}
	wg.Wait()

	b, err := m.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "50", string(b))
}

func TestMemoryJanitor(t *testing.T) {
	m := NewMemory(WithJanitor(5 * time.Millisecond))
	defer m.Close()

	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), time.Millisecond))
	assert.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return len(m.items) == 0
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, m.Close())
}
