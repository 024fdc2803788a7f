package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func TestLoaderReadThrough(t *testing.T) {
	m := NewMemory()
	l := NewLoader[profile](m, time.Minute, nil)
	ctx := context.Background()

	var calls atomic.Int32
	load := func(context.Context) (profile, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return profile{ID: "u1", Email: "a@b.io"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := l.Get(ctx, "user:u1", load)
			assert.NoError(t, err)
			assert.Equal(t, "u1", p.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	p, err := l.Get(ctx, "user:u1", load)
	require.NoError(t, err)
	assert.Equal(t, "a@b.io", p.Email)
	assert.Equal(t, int32(1), calls.Load())

	l.Invalidate(ctx, "user:u1")
	_, err = l.Get(ctx, "user:u1", load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoaderErrorsAreNotCached(t *testing.T) {
	m := NewMemory()
	l := NewLoader[profile](m, time.Minute, nil)
	boom := errors.New("boom")

	_, err := l.Get(context.Background(), "k", func(context.Context) (profile, error) {
		return profile{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())
}

func TestLoaderSurvivesBrokenCache(t *testing.T) {
	remote := &flaky{Memory: NewMemory()}
	remote.down.Store(true)
	l := NewLoader[profile](remote, time.Minute, nil)

	p, err := l.Get(context.Background(), "k", func(context.Context) (profile, error) {
		return profile{ID: "x"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "x", p.ID)
}

func TestLoaderDropsUndecodableEntry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", []byte("{not json"), time.Minute))

	l := NewLoader[profile](m, time.Minute, nil)
	p, err := l.Get(ctx, "k", func(context.Context) (profile, error) {
		return profile{ID: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", p.ID)
}
