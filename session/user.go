package session

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by a UserStore for unknown ids and emails.
var ErrUserNotFound = errors.New("session: user not found")

// User is the read only view of an account the session layer needs.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
	Active       bool   `json:"-"`
	Approved     bool   `json:"-"`
}

// CanSignIn reports whether the account may hold sessions.
func (u *User) CanSignIn() bool {
	return u.Active && u.Approved
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Notifier delivers session related emails. Implementations must not block
// on delivery; failures are logged by the caller and otherwise ignored.
type Notifier interface {
	Send(ctx context.Context, email, template string, args map[string]string) error
}

const TemplateNewLogin = "new_login"
