package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) sameSite() http.SameSite {
	switch strings.ToLower(s.opts.Cookie.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (s *Server) refreshCookie(value string, maxAge int) *http.Cookie {
	c := s.opts.Cookie
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		// browsers drop SameSite=None cookies that are not Secure
		Secure:   c.Secure || s.sameSite() == http.SameSiteNoneMode,
		SameSite: s.sameSite(),
	}
}

func (s *Server) setRefreshCookie(c *gin.Context, secret string, ttl time.Duration) {
	http.SetCookie(c.Writer, s.refreshCookie(secret, int(ttl/time.Second)))
}

func (s *Server) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, s.refreshCookie("", -1))
}

func (s *Server) refreshSecret(c *gin.Context) string {
	v, err := c.Cookie(s.opts.Cookie.Name)
	if err != nil {
		return ""
	}
	return v
}
