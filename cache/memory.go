package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value []byte
	// zero means no expiry
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process cache. Expired entries are never returned and are
// removed lazily on access, or by the janitor when one is configured.
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time

	sweep time.Duration
	stop  chan struct{}
	once  sync.Once
}

type MemoryOption func(*Memory)

// WithJanitor removes expired entries every interval.
func WithJanitor(interval time.Duration) MemoryOption {
	return func(m *Memory) {
		m.sweep = interval
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{items: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.sweep > 0 {
		m.stop = make(chan struct{})
		go m.janitor(m.sweep)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	now := m.now()

	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if e.expired(now) {
		m.mu.Lock()
		if cur, ok := m.items[key]; ok && cur.expired(now) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return clone(e.value), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: clone(value)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteByPrefix(_ context.Context, pattern string) (int, error) {
	pattern = Pattern(pattern)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			continue
		}
		if Match(pattern, k) {
			delete(m.items, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok || e.expired(now) {
		e = entry{value: []byte("1")}
		if ttl > 0 {
			e.expiresAt = now.Add(ttl)
		}
		m.items[key] = e
		return 1, nil
	}

	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	e.value = strconv.AppendInt(nil, n, 10)
	m.items[key] = e
	return n, nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// Len counts live entries.
func (m *Memory) Len() int {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.items {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Flush drops every entry.
func (m *Memory) Flush() {
	m.mu.Lock()
	m.items = make(map[string]entry)
	m.mu.Unlock()
}

func (m *Memory) Close() error {
	m.once.Do(func() {
		if m.stop != nil {
			close(m.stop)
		}
	})
	return nil
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for k, e := range m.items {
				if e.expired(now) {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
