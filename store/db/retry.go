package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"
)

// RetryConfig bounds the retries of transient failures.
type RetryConfig struct {
	Attempts   int           `mapstructure:"attempts" default:"3" validate:"gte=1"`
	BaseDelay  time.Duration `mapstructure:"base_delay" default:"50ms"`
	MaxDelay   time.Duration `mapstructure:"max_delay" default:"1s"`
	Multiplier float64       `mapstructure:"multiplier" default:"2"`
}

// Backoff returns the delay before retry n (0 based): base * multiplier^n
// capped at MaxDelay with +/-25% jitter.
func (r RetryConfig) Backoff(n int) time.Duration {
	mult := r.Multiplier
	if mult < 1 {
		mult = 2
	}
	delay := float64(r.BaseDelay) * math.Pow(mult, float64(n))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}
	if delay > 0 {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}
	return time.Duration(max(delay, 0))
}

// Retry runs fn until it succeeds, fails with a non transient error, the
// attempts are spent or ctx ends. Exhausted retries return an error wrapping
// both ErrUnavailable and the last failure.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	attempts := max(cfg.Attempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(cfg.Backoff(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

type finalError struct{ err error }

func (e *finalError) Error() string { return e.err.Error() }
func (e *finalError) Unwrap() error { return e.err }

// Final marks err so that Retry returns it without another attempt, even
// when it wraps a transient failure.
func Final(err error) error {
	if err == nil {
		return nil
	}
	return &finalError{err: err}
}

// IsTransient reports whether err is a connectivity failure worth retrying.
// Constraint violations, missing rows, caller cancellation and errors marked
// Final are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var final *finalError
	if errors.As(err, &final) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "database is locked", "too many connections", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
