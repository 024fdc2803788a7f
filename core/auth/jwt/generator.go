// Package jwt issues and verifies the short lived, stateless access
// credential. Nothing about access credentials is persisted.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Issuer struct {
	config *Config
	method jwt.SigningMethod
	parser *jwt.Parser
	now    func() time.Time
}

func New(cfg *Config, opts ...Option) (*Issuer, error) {
	if cfg == nil || cfg.Secret == "" {
		return nil, ErrEmptySecret
	}
	i := &Issuer{config: cfg, method: cfg.GetSigningMethod(), now: time.Now}
	for _, opt := range opts {
		opt(i)
	}

	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(i.now),
	}
	if cfg.Issuer != "" {
		popts = append(popts, jwt.WithIssuer(cfg.Issuer))
	}
	if len(cfg.Audience) > 0 {
		popts = append(popts, jwt.WithAudience(cfg.Audience[0]))
	}
	i.parser = jwt.NewParser(popts...)
	return i, nil
}

// TTL of issued credentials.
func (i *Issuer) TTL() time.Duration {
	if i.config.AccessTTL <= 0 {
		return 15 * time.Minute
	}
	return i.config.AccessTTL
}

// Issue signs a credential for s and returns it with its expiry.
func (i *Issuer) Issue(s Subject) (string, time.Time, error) {
	if s.ID == "" {
		return "", time.Time{}, ErrEmptySubject
	}

	now := i.now()
	exp := now.Add(i.TTL())
	claims := &Claims{
		UserID: s.ID,
		Role:   s.Role,
		Email:  s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.ID,
			Issuer:    i.config.Issuer,
			Audience:  i.config.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(i.method, claims).SignedString(i.config.GetSecret())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp.Truncate(time.Second), nil
}

// Verify checks signature, issuer and expiry. An expired but otherwise valid
// credential yields ErrExpiredToken, anything else ErrInvalidToken.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.config.GetSecret(), nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrExpiredToken, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing uid", ErrInvalidToken)
	}
	return claims, nil
}
