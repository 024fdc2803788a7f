// Package notify delivers session emails (new sign-in alerts) without
// holding up the request that triggered them.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/panjf2000/ants/v2"

	"github.com/kochabx/portal/core/util/desensitize"
	"github.com/kochabx/portal/core/util/network"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/session"
)

var ErrClosed = errors.New("notify: dispatcher closed")

// Message is the payload handed to the mail service.
type Message struct {
	Template string            `json:"template"`
	Email    string            `json:"email"`
	Args     map[string]string `json:"args,omitempty"`
	Source   string            `json:"source"`
	SentAt   time.Time         `json:"sent_at"`
}

type Sink interface {
	Deliver(ctx context.Context, m Message) error
}

// Publisher is the subset of the kafka client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type KafkaSink struct {
	pub   Publisher
	topic string
}

func NewKafkaSink(pub Publisher, topic string) *KafkaSink {
	return &KafkaSink{pub: pub, topic: topic}
}

// Deliver keys messages by recipient so one user's mails stay ordered.
func (s *KafkaSink) Deliver(ctx context.Context, m Message) error {
	b, err := sonic.Marshal(m)
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, s.topic, []byte(m.Email), b)
}

// Poster is the subset of the outbound http client the webhook sink needs.
type Poster interface {
	PostJSON(ctx context.Context, url string, body, out any) error
}

// WebhookSink posts each message to a mail relay endpoint.
type WebhookSink struct {
	client Poster
	url    string
}

func NewWebhookSink(client Poster, url string) *WebhookSink {
	return &WebhookSink{client: client, url: url}
}

func (s *WebhookSink) Deliver(ctx context.Context, m Message) error {
	return s.client.PostJSON(ctx, s.url, m, nil)
}

// LogSink stands in for the mail service in development.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(l *log.Logger) *LogSink {
	return &LogSink{logger: log.OrGlobal(l).Component("notify")}
}

func (s *LogSink) Deliver(_ context.Context, m Message) error {
	s.logger.Info().
		Str("template", m.Template).
		Str("email", desensitize.Email(m.Email)).
		Int("args", len(m.Args)).
		Msg("notification")
	return nil
}

var _ session.Notifier = (*Dispatcher)(nil)

// Dispatcher runs deliveries on a bounded goroutine pool. Send never waits
// for delivery; when the pool is saturated the message is dropped and
// Send reports it.
type Dispatcher struct {
	sink    Sink
	pool    *ants.Pool
	timeout time.Duration
	source  string
	now     func() time.Time
	logger  *log.Logger
	wg      sync.WaitGroup
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(n *Dispatcher) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(sink Sink, size int, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		sink:    sink,
		timeout: 10 * time.Second,
		source:  network.Hostname(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = log.OrGlobal(d.logger).Component("notify")

	pool, err := ants.NewPool(max(size, 1),
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			d.logger.Error().Interface("panic", p).Msg("delivery panicked")
		}),
	)
	if err != nil {
		return nil, err
	}
	d.pool = pool
	return d, nil
}

func (d *Dispatcher) Send(_ context.Context, email, template string, args map[string]string) error {
	m := Message{
		Template: template,
		Email:    email,
		Args:     args,
		Source:   d.source,
		SentAt:   d.now().UTC(),
	}

	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.sink.Deliver(ctx, m); err != nil {
			d.logger.Warn().Err(err).Str("template", template).Str("email", desensitize.Email(email)).Msg("delivery failed")
		}
	})
	if err != nil {
		d.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Running is the number of deliveries in flight.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Close waits for in-flight deliveries until ctx ends, then releases the
// pool.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	d.pool.Release()
	return err
}
