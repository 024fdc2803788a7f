package jwt

import "errors"

var (
	ErrEmptyToken   = errors.New("jwt: empty token")
	ErrInvalidToken = errors.New("jwt: invalid token")
	ErrExpiredToken = errors.New("jwt: token expired")
	ErrEmptySecret  = errors.New("jwt: secret cannot be empty")
	ErrEmptySubject = errors.New("jwt: subject cannot be empty")
)
