package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nethttp "github.com/kochabx/portal/core/net/http"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/session"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []Message
	err  error
	gate chan struct{}
}

func (s *recordingSink) Deliver(ctx context.Context, m Message) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, m)
	return s.err
}

func (s *recordingSink) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.got...)
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &recordingSink{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, err := New(sink, 4, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, d.Send(context.Background(), "ada@example.com", session.TemplateNewLogin, map[string]string{"device": "firefox"}))
	require.NoError(t, d.Close(context.Background()))

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, session.TemplateNewLogin, msgs[0].Template)
	assert.Equal(t, "firefox", msgs[0].Args["device"])
	assert.Equal(t, now, msgs[0].SentAt)
	assert.NotEmpty(t, msgs[0].Source)

	assert.ErrorIs(t, d.Send(context.Background(), "ada@example.com", "x", nil), ErrClosed)
}

func TestDispatcherDoesNotBlock(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	d, err := New(sink, 1)
	require.NoError(t, err)

	require.NoError(t, d.Send(context.Background(), "a@b.io", "x", nil))
	assert.Eventually(t, func() bool { return d.Running() == 1 }, time.Second, 5*time.Millisecond)

	// the only worker is busy
	start := time.Now()
	err = d.Send(context.Background(), "a@b.io", "x", nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(sink.gate)
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sink.messages(), 1)
}

func TestDeliveryFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{err: errors.New("smtp down")}
	d, err := New(sink, 2, WithLogger(log.NewJSON(&buf)))
	require.NoError(t, err)

	require.NoError(t, d.Send(context.Background(), "ada@example.com", "x", nil))
	require.NoError(t, d.Close(context.Background()))

	assert.Contains(t, buf.String(), "delivery failed")
	assert.Contains(t, buf.String(), "a***@example.com")
	assert.NotContains(t, buf.String(), "ada@example.com")
}

func TestCloseHonoursContext(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	defer close(sink.gate)
	d, err := New(sink, 1)
	require.NoError(t, err)
	require.NoError(t, d.Send(context.Background(), "a@b.io", "x", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}

type fakePublisher struct {
	topic      string
	key, value []byte
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestKafkaSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewKafkaSink(pub, "portal.notifications")

	require.NoError(t, sink.Deliver(context.Background(), Message{Template: "new_login", Email: "ada@example.com"}))
	assert.Equal(t, "portal.notifications", pub.topic)
	assert.Equal(t, []byte("ada@example.com"), pub.key)

	var m map[string]any
	require.NoError(t, json.Unmarshal(pub.value, &m))
	assert.Equal(t, "new_login", m["template"])
}

func TestLogSinkMasksEmail(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(log.NewJSON(&buf))
	require.NoError(t, sink.Deliver(context.Background(), Message{Template: "new_login", Email: "ada@example.com"}))
	assert.Contains(t, buf.String(), "a***@example.com")
}

func TestWebhookSink(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(nethttp.New(), srv.URL)
	require.NoError(t, sink.Deliver(context.Background(), Message{Template: session.TemplateNewLogin, Email: "a@b.io"}))

	var m Message
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "a@b.io", m.Email)
	assert.Equal(t, session.TemplateNewLogin, m.Template)
}
