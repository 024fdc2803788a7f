// Package server is the HTTP surface of the portal: routes, cookies and the
// middleware chain around the session components.
package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/cache"
	"github.com/kochabx/portal/core/rate"
	"github.com/kochabx/portal/csrf"
	"github.com/kochabx/portal/internal/conf"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/metrics"
	mw "github.com/kochabx/portal/middleware/http"
	"github.com/kochabx/portal/session"
)

// UserView is the read side the /api/me route needs.
type UserView interface {
	FindByID(ctx context.Context, id string) (*session.User, error)
}

type Deps struct {
	Sessions *session.Manager
	Users    UserView
	Guard    *csrf.Guard
	Limiter  *rate.Limiter
	Cache    cache.Cache
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

type Options struct {
	Cookie conf.CookieConfig
	Cors   mw.CorsConfig
	// access log skip list
	Quiet []string
	// IPs or CIDRs allowed to set X-Forwarded-For. Empty means the client
	// address is always the connection peer.
	TrustedProxies []string
}

type Server struct {
	deps   Deps
	opts   Options
	logger *log.Logger
}

func New(deps Deps, opts Options) *Server {
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = "refresh_token"
	}
	if opts.Cookie.Path == "" {
		opts.Cookie.Path = "/"
	}
	return &Server{deps: deps, opts: opts, logger: log.OrGlobal(deps.Logger).Component("server")}
}

// Router builds the gin engine. Health and metrics endpoints are mounted by
// the transport server.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.ContextWithFallback = true
	if err := r.SetTrustedProxies(s.opts.TrustedProxies); err != nil {
		s.logger.Error().Err(err).Msg("invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(mw.Recovery(mw.RecoveryConfig{StackTrace: true, Logger: s.deps.Logger}))
	r.Use(mw.RequestID())
	r.Use(mw.Logger(mw.LoggerConfig{Logger: s.deps.Logger, SkipPaths: s.opts.Quiet}))
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware())
	}
	r.Use(mw.Cors(s.opts.Cors))

	api := r.Group("/api")
	if s.deps.Limiter != nil {
		api.Use(rate.Middleware(s.deps.Limiter, rate.BucketGeneral))
	}
	if s.deps.Guard != nil {
		api.Use(s.deps.Guard.Middleware())
	}

	auth := api.Group("/auth")
	auth.GET("/csrf", s.csrfToken)
	auth.POST("/login", s.login)
	auth.POST("/refresh", s.refresh)
	auth.POST("/logout", s.logout)
	auth.GET("/token-status", s.tokenStatus)

	authed := api.Group("", mw.Auth(mw.AuthConfig{Verify: s.deps.Sessions.VerifyAccess}))
	authed.GET("/me", s.me)
	authed.GET("/me/sessions", s.sessions)
	authed.POST("/me/sessions/revoke", s.revokeOwn)

	admin := authed.Group("/admin", mw.RequireRole("admin"))
	admin.POST("/users/:id/revoke", s.revokeUser)
	admin.DELETE("/cache", s.invalidateCache)

	return r
}
