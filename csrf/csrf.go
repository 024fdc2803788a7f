// Package csrf implements the double submit token check. A token is
// nonce.timestamp.signature, signed with HMAC-SHA256. It is handed out on
// safe requests in a script readable cookie and a response header; unsafe
// requests must echo the cookie value in the header.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/core/crypto/hmac"
	perrors "github.com/kochabx/portal/errors"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/transport/http/response"
)

var (
	ErrInvalid = perrors.NewReason(http.StatusForbidden, "INVALID_CSRF", "invalid or missing csrf token")

	ErrMalformed = errors.New("csrf: malformed token")
	ErrMissing   = errors.New("csrf: token missing")
	ErrMismatch  = errors.New("csrf: header does not match cookie")
)

type Config struct {
	Secret      string        `mapstructure:"secret" json:"-" validate:"required,min=32"`
	TTL         time.Duration `mapstructure:"ttl" default:"12h" validate:"gt=0"`
	CookieName  string        `mapstructure:"cookie_name" default:"csrf_token"`
	HeaderName  string        `mapstructure:"header_name" default:"X-CSRF-Token"`
	Domain      string        `mapstructure:"domain"`
	Secure      bool          `mapstructure:"secure"`
	SameSite    string        `mapstructure:"same_site" default:"lax" validate:"oneof=lax strict none"`
	ExemptPaths []string      `mapstructure:"exempt_paths"`
}

type Guard struct {
	cfg    Config
	now    func() time.Time
	logger *log.Logger
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

func New(cfg Config, opts ...Option) (*Guard, error) {
	if cfg.Secret == "" {
		return nil, hmac.ErrEmptySecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "csrf_token"
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-CSRF-Token"
	}
	g := &Guard{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = log.OrGlobal(g.logger).Component("csrf")
	return g, nil
}

// Issue returns a new signed token.
func (g *Guard) Issue() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(b)

	res, err := hmac.Sign(g.cfg.Secret, hmac.WithPayload(nonce), hmac.WithClock(g.now))
	if err != nil {
		return "", err
	}
	return nonce + "." + strconv.FormatInt(res.Timestamp, 10) + "." + res.Signature, nil
}

// Validate checks the signature and age of token.
func (g *Guard) Validate(token string) error {
	_, err := g.age(token)
	return err
}

func (g *Guard) age(token string) (time.Duration, error) {
	if token == "" {
		return 0, ErrMissing
	}
	nonce, rest, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return 0, ErrMalformed
	}
	tsRaw, sig, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, ErrMalformed
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	if err := hmac.Verify(g.cfg.Secret, sig, ts,
		hmac.WithPayload(nonce),
		hmac.WithExpiration(g.cfg.TTL),
		hmac.WithSkew(time.Minute),
		hmac.WithClock(g.now),
	); err != nil {
		return 0, err
	}
	return g.now().Sub(time.Unix(ts, 0)), nil
}

// Check compares the header against the cookie in constant time and then
// verifies the cookie.
func (g *Guard) Check(header, cookie string) error {
	if header == "" || cookie == "" {
		return ErrMissing
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
		return ErrMismatch
	}
	return g.Validate(cookie)
}

func (g *Guard) exempt(path string) bool {
	for _, p := range g.cfg.ExemptPaths {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

func (g *Guard) sameSite() http.SameSite {
	switch strings.ToLower(g.cfg.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Middleware hands out tokens on safe requests and enforces them on the
// rest. A still valid cookie younger than half the TTL is handed back as is
// so parallel requests from one page do not invalidate each other.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.exempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		cookie, _ := c.Cookie(g.cfg.CookieName)
		if safeMethod(c.Request.Method) {
			g.provide(c, cookie)
			c.Next()
			return
		}

		if err := g.Check(c.GetHeader(g.cfg.HeaderName), cookie); err != nil {
			g.logger.Warn().
				Err(err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("ip", c.ClientIP()).
				Str("user_agent", c.Request.UserAgent()).
				Msg("csrf check failed")
			response.Error(c, ErrInvalid)
			return
		}
		c.Next()
	}
}

func (g *Guard) provide(c *gin.Context, current string) {
	token := current
	if age, err := g.age(current); err != nil || age > g.cfg.TTL/2 {
		var ierr error
		if token, ierr = g.Issue(); ierr != nil {
			g.logger.Error().Err(ierr).Msg("issue csrf token")
			return
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     g.cfg.CookieName,
			Value:    token,
			Path:     "/",
			Domain:   g.cfg.Domain,
			MaxAge:   int(g.cfg.TTL / time.Second),
			Secure:   g.cfg.Secure,
			HttpOnly: false,
			SameSite: g.sameSite(),
		})
	}
	c.Header(g.cfg.HeaderName, token)
	c.Set(ContextKey, token)
}

// ContextKey holds the token handed out for the current request.
const ContextKey = "csrf_token"

// Token returns the token handed out for the current safe request.
func Token(c *gin.Context) string {
	return c.GetString(ContextKey)
}
