package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/core/tag"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/metrics"
	"github.com/kochabx/portal/transport"
)

var _ transport.Server = (*Server)(nil)

const defaultAddr = ":8080"

type Server struct {
	name    string
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Metrics
	health  HealthFunc
	server  *http.Server
}

// NewServer wraps handler in an http.Server. When handler is a gin engine
// the metrics and health endpoints are mounted on it.
func NewServer(cfg Config, handler http.Handler, opts ...Option) (*Server, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	s := &Server{name: "http", cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrGlobal(s.logger).Component(s.name)

	if r, ok := handler.(*gin.Engine); ok {
		s.mount(r)
	}

	addr := cfg.Addr
	if !transport.ValidateAddress(addr) {
		s.logger.Warn().Str("addr", addr).Str("fallback", defaultAddr).Msg("invalid listen address")
		addr = defaultAddr
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Run() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) mount(r *gin.Engine) {
	if s.metrics != nil {
		r.GET(s.cfg.MetricsPath, gin.WrapH(s.metrics.Handler()))
	}
	r.GET(s.cfg.HealthPath, s.handleHealth)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks, ok := s.health(ctx)
	status, code := "ok", http.StatusOK
	if !ok {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}
