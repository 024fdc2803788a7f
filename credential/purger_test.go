package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgerSchedule(t *testing.T) {
	s, _ := newStore(t)

	_, err := NewPurger(s, "not a schedule")
	assert.Error(t, err)

	p, err := NewPurger(s, "@hourly", WithPurgeTimeout(time.Second))
	require.NoError(t, err)
	p.Start()
	assert.NoError(t, p.Stop(context.Background()))
}

func TestPurgerRunOnce(t *testing.T) {
	s, clk := newStore(t)
	create(t, s, "u1", "gone", time.Minute)
	clk.Advance(time.Hour)

	hooked := int64(-1)
	p, err := NewPurger(s, "*/5 * * * *", WithPurgeHook(func(n int64, err error) { hooked = n }))
	require.NoError(t, err)

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	p.run()
	assert.Equal(t, int64(0), hooked)
}
