package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/core/auth/jwt"
	"github.com/kochabx/portal/errors"
	"github.com/kochabx/portal/transport/http/response"
)

const claimsKey = "auth.claims"

var ErrForbidden = errors.Forbidden("insufficient permissions")

type AuthConfig struct {
	SkipPaths []string
	// Verify turns the bearer credential into claims. It receives "" when
	// the header is missing and decides how to report that.
	Verify func(token string) (*jwt.Claims, error)
}

// BearerToken extracts the credential from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth rejects requests whose bearer credential does not verify and stores
// the claims for the handlers.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	matcher := NewPathMatcher(cfg.SkipPaths)
	return func(c *gin.Context) {
		if cfg.Verify == nil || matcher.Match(c.Request.URL.Path) {
			c.Next()
			return
		}
		claims, err := cfg.Verify(BearerToken(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims returns the verified claims of the request, or nil.
func Claims(c *gin.Context) *jwt.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*jwt.Claims)
	return claims
}

// RequireRole must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil || !slices.Contains(roles, claims.Role) {
			response.Error(c, ErrForbidden)
			return
		}
		c.Next()
	}
}
