package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/errors"
	mw "github.com/kochabx/portal/middleware/http"
	"github.com/kochabx/portal/session"
	"github.com/kochabx/portal/transport/http/response"
)

func (s *Server) me(c *gin.Context) {
	claims := mw.Claims(c)
	u, err := s.deps.Users.FindByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, session.ErrUserNotFound) {
		response.Error(c, session.ErrInvalidSession)
		return
	}
	if err != nil {
		response.Error(c, errors.ServiceUnavailable("user lookup failed").WithCause(err))
		return
	}
	response.JSON(c, u)
}

func (s *Server) sessions(c *gin.Context) {
	list, err := s.deps.Sessions.Sessions(c.Request.Context(), mw.Claims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, gin.H{"sessions": list})
}

// revokeOwn ends every session of the caller, including the current one.
func (s *Server) revokeOwn(c *gin.Context) {
	n, err := s.deps.Sessions.RevokeAll(c.Request.Context(), mw.Claims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	s.clearRefreshCookie(c)
	response.JSON(c, gin.H{"revoked": n})
}

func (s *Server) revokeUser(c *gin.Context) {
	target := c.Param("id")
	n, err := s.deps.Sessions.RevokeAll(c.Request.Context(), target)
	if err != nil {
		response.Error(c, err)
		return
	}
	s.logger.Info().Str("admin_id", mw.Claims(c).UserID).Str("user_id", target).Int64("revoked", n).Msg("sessions revoked by admin")
	response.JSON(c, gin.H{"revoked": n})
}

// invalidateCache drops every entry matching pattern ("posts:*").
func (s *Server) invalidateCache(c *gin.Context) {
	pattern := strings.TrimSpace(c.Query("pattern"))
	if pattern == "" || pattern == "*" {
		response.Error(c, errors.BadRequest("pattern is required and must not match everything"))
		return
	}
	if s.deps.Cache == nil {
		response.JSON(c, gin.H{"deleted": 0})
		return
	}
	n, err := s.deps.Cache.DeleteByPrefix(c.Request.Context(), pattern)
	if err != nil {
		response.Error(c, errors.ServiceUnavailable("cache invalidation failed").WithCause(err))
		return
	}
	s.logger.Info().Str("admin_id", mw.Claims(c).UserID).Str("pattern", pattern).Int("deleted", n).Msg("cache invalidated")
	response.JSON(c, gin.H{"deleted": n})
}
