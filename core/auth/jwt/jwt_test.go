package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func newIssuer(t *testing.T, now *time.Time) *Issuer {
	t.Helper()
	i, err := New(&Config{Secret: secret, AccessTTL: 15 * time.Minute, Issuer: "portal"},
		WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return i
}

func TestIssueVerify(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	i := newIssuer(t, &now)

	token, exp, err := i.Issue(Subject{ID: "u1", Role: "admin", Email: "a@b.io"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), exp)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := i.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Subject{ID: "u1", Role: "admin", Email: "a@b.io"}, claims.Principal())
	assert.Equal(t, "u1", claims.RegisteredClaims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, exp.Equal(claims.Expiry()))

	other, _, err := i.Issue(Subject{ID: "u1"})
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestVerifyExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	i := newIssuer(t, &now)

	token, _, err := i.Issue(Subject{ID: "u1"})
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = i.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyInvalid(t *testing.T) {
	now := time.Now()
	i := newIssuer(t, &now)

	_, err := i.Verify("")
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = i.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err := i.Issue(Subject{ID: "u1"})
	require.NoError(t, err)
	_, err = i.Verify(token[:len(token)-2] + "xx")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// another key
	foreign, err := New(&Config{Secret: strings.Repeat("z", 32), Issuer: "portal"})
	require.NoError(t, err)
	ft, _, err := foreign.Issue(Subject{ID: "u1"})
	require.NoError(t, err)
	_, err = i.Verify(ft)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// another issuer
	stranger, err := New(&Config{Secret: secret, Issuer: "elsewhere"})
	require.NoError(t, err)
	st, _, err := stranger.Issue(Subject{ID: "u1"})
	require.NoError(t, err)
	_, err = i.Verify(st)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNoneAndOtherMethods(t *testing.T) {
	now := time.Now()
	i := newIssuer(t, &now)

	claims := &Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "portal",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = i.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = i.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewAndIssueValidation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptySecret)
	_, err = New(&Config{})
	assert.ErrorIs(t, err, ErrEmptySecret)

	i, err := New(&Config{Secret: secret})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, i.TTL())
	_, _, err = i.Issue(Subject{})
	assert.ErrorIs(t, err, ErrEmptySubject)
}
