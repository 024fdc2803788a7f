package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"golang.org/x/sync/errgroup"

	"github.com/kochabx/portal/log"
)

var (
	ErrInvalidConfig = errors.New("kafka: invalid config")
	ErrClosed        = errors.New("kafka: client closed")
)

// Client hands out one writer per topic and closes them together.
type Client struct {
	config    *Config
	transport *kafka.Transport
	logger    *log.Logger

	mu        sync.RWMutex
	producers map[string]*kafka.Writer
	closed    bool
}

type Option func(*Client)

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	c := &Client{
		config:    cfg,
		producers: make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrGlobal(c.logger)

	c.transport = &kafka.Transport{DialTimeout: cfg.Timeout}
	if cfg.Username != "" && cfg.Password != "" {
		c.transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	return c, nil
}

// Producer returns the synchronous writer for topic, creating it on first use.
func (c *Client) Producer(topic string) (*kafka.Writer, error) {
	c.mu.RLock()
	w, ok := c.producers[topic]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return w, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if w, ok := c.producers[topic]; ok {
		return w, nil
	}

	w = &kafka.Writer{
		Addr:                   kafka.TCP(c.config.Brokers...),
		Topic:                  topic,
		Balancer:               c.config.balancer(),
		Transport:              c.transport,
		AllowAutoTopicCreation: c.config.AllowAutoTopicCreation,
		WriteTimeout:           c.config.WriteTimeout,
		BatchTimeout:           c.config.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
	}
	c.producers[topic] = w
	return w, nil
}

// Publish writes one keyed message to topic.
func (c *Client) Publish(ctx context.Context, topic string, key, value []byte) error {
	w, err := c.Producer(topic)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

// Close flushes and closes every writer.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	producers := c.producers
	c.producers = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.CloseTimeout)
	defer cancel()

	eg, _ := errgroup.WithContext(ctx)
	for _, w := range producers {
		eg.Go(w.Close)
	}

	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.logger.Warn().Msg("kafka producers did not close in time")
		return ctx.Err()
	}
}
