package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject is what an access credential asserts about its holder.
type Subject struct {
	ID    string
	Role  string
	Email string
}

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() Subject {
	return Subject{ID: c.UserID, Role: c.Role, Email: c.Email}
}

// Expiry returns exp, or the zero time when the claim is missing.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
