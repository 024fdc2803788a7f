package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerReuse(t *testing.T) {
	c, err := New(&Config{Brokers: []string{"127.0.0.1:1"}})
	require.NoError(t, err)

	w1, err := c.Producer("portal.notifications")
	require.NoError(t, err)
	w2, err := c.Producer("portal.notifications")
	require.NoError(t, err)
	assert.Same(t, w1, w2)
	assert.Equal(t, "portal.notifications", w1.Topic)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Producer("portal.notifications")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Publish(context.Background(), "t", nil, []byte("x")), ErrClosed)
}

func TestDefaults(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := &Config{}
	require.NoError(t, cfg.ApplyDefaults())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
}
