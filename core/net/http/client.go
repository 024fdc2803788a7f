// Package http is a small JSON client for outbound calls such as webhooks.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

const (
	ContentTypeJSON = "application/json"

	defaultBufferSize = 4096
	// larger buffers are not pooled
	maxBufferSize = 1 << 20
	// bytes of an error body kept in StatusError
	maxErrorBody = 512
)

// StatusError is returned for responses outside 2xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type Client struct {
	client  *http.Client
	header  map[string]string
	buffers sync.Pool
}

type Option func(*Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout bounds every request, connection included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHeader adds headers sent on every request.
func WithHeader(header map[string]string) Option {
	return func(c *Client) {
		maps.Copy(c.header, header)
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{Timeout: 10 * time.Second},
		header: map[string]string{"Content-Type": ContentTypeJSON},
		buffers: sync.Pool{New: func() any {
			return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
		}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON sends body encoded as JSON. When out is non nil a 2xx response
// body is decoded into it.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	return c.Do(ctx, http.MethodPost, url, body, out)
}

func (c *Client) Do(ctx context.Context, method, url string, body, out any) error {
	buf := c.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		if buf.Cap() <= maxBufferSize {
			c.buffers.Put(buf)
		}
	}()

	var reader io.Reader
	if body != nil {
		if err := sonic.ConfigDefault.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(buf.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return sonic.ConfigDefault.NewDecoder(resp.Body).Decode(out)
}
