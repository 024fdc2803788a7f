// Package hmac signs short lived values with HMAC-SHA256 over a timestamp
// and an optional payload.
package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	ErrEmptySecret      = errors.New("hmac: secret cannot be empty")
	ErrEmptySignature   = errors.New("hmac: signature cannot be empty")
	ErrInvalidTimestamp = errors.New("hmac: invalid timestamp")
	ErrExpired          = errors.New("hmac: signature expired")
	ErrFuture           = errors.New("hmac: timestamp is in the future")
	ErrMalformed        = errors.New("hmac: invalid signature format")
	ErrMismatch         = errors.New("hmac: signature mismatch")
)

type SignResult struct {
	Signature string
	Timestamp int64
}

type Option struct {
	payload    string
	expiration time.Duration
	skew       time.Duration
	now        func() time.Time
}

// WithPayload binds extra data into the signature.
func WithPayload(payload string) func(*Option) {
	return func(o *Option) {
		o.payload = payload
	}
}

// WithExpiration defaults to 5 minutes.
func WithExpiration(d time.Duration) func(*Option) {
	return func(o *Option) {
		o.expiration = d
	}
}

// WithSkew tolerates timestamps up to d in the future.
func WithSkew(d time.Duration) func(*Option) {
	return func(o *Option) {
		o.skew = d
	}
}

func WithClock(now func() time.Time) func(*Option) {
	return func(o *Option) {
		o.now = now
	}
}

func options(opts []func(*Option)) *Option {
	opt := &Option{expiration: 5 * time.Minute, now: time.Now}
	for _, o := range opts {
		o(opt)
	}
	return opt
}

func Sign(secret string, opts ...func(*Option)) (*SignResult, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	opt := options(opts)

	ts := opt.now().Unix()
	return &SignResult{
		Signature: hex.EncodeToString(sum(secret, ts, opt.payload)),
		Timestamp: ts,
	}, nil
}

// Verify checks signature against the timestamp and payload it was made
// with. The options must match the ones given to Sign.
func Verify(secret, signature string, timestamp int64, opts ...func(*Option)) error {
	switch {
	case secret == "":
		return ErrEmptySecret
	case signature == "":
		return ErrEmptySignature
	case timestamp <= 0:
		return ErrInvalidTimestamp
	}
	opt := options(opts)

	elapsed := opt.now().Unix() - timestamp
	if elapsed > int64(opt.expiration/time.Second) {
		return ErrExpired
	}
	if elapsed < -int64(opt.skew/time.Second) {
		return ErrFuture
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrMalformed
	}
	if !hmac.Equal(got, sum(secret, timestamp, opt.payload)) {
		return ErrMismatch
	}
	return nil
}

func sum(secret string, timestamp int64, payload string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(strconv.AppendInt(nil, timestamp, 10))
	h.Write([]byte{'\n'})
	h.Write([]byte(payload))
	return h.Sum(nil)
}
