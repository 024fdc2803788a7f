package server

import (
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/portal/core/rate"
	"github.com/kochabx/portal/core/util/convert"
	"github.com/kochabx/portal/core/validator"
	"github.com/kochabx/portal/csrf"
	"github.com/kochabx/portal/errors"
	mw "github.com/kochabx/portal/middleware/http"
	"github.com/kochabx/portal/session"
	"github.com/kochabx/portal/transport/http/response"
)

const maxDeviceLabel = 255

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=320"`
	Password string `json:"password" validate:"required,max=256"`
	// clients send true, "true", 1 or "on"
	Remember any    `json:"remember"`
	Device   string `json:"device" validate:"max=255"`
}

type sessionResponse struct {
	AccessToken string        `json:"accessToken"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	User        *session.User `json:"user"`
}

func deviceLabel(c *gin.Context, explicit string) string {
	label := explicit
	if label == "" {
		label = c.Request.UserAgent()
	}
	for len(label) > maxDeviceLabel {
		_, size := utf8.DecodeLastRuneInString(label)
		label = label[:len(label)-size]
	}
	return label
}

func (s *Server) csrfToken(c *gin.Context) {
	response.JSON(c, gin.H{"csrfToken": csrf.Token(c)})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.BadRequest("malformed request body").WithCause(err))
		return
	}
	if err := validator.Validate.StructCtx(c.Request.Context(), &req); err != nil {
		response.Error(c, errors.BadRequest("%s", err.Error()).WithCause(err))
		return
	}

	id := rate.IdentityFromContext(c)
	res, err := s.deps.Sessions.Login(c.Request.Context(), session.LoginInput{
		Email:         req.Email,
		Password:      req.Password,
		Remember:      convert.Bool(req.Remember),
		DeviceLabel:   deviceLabel(c, req.Device),
		OriginAddress: id.IP,
		DeviceID:      id.DeviceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	s.setRefreshCookie(c, res.RefreshSecret, res.RefreshTTL)
	response.JSON(c, sessionResponse{AccessToken: res.AccessToken, ExpiresAt: res.AccessExpiresAt, User: res.User})
}

func (s *Server) refresh(c *gin.Context) {
	id := rate.IdentityFromContext(c)
	res, err := s.deps.Sessions.Refresh(c.Request.Context(), session.RefreshInput{
		Secret:        s.refreshSecret(c),
		DeviceLabel:   deviceLabel(c, ""),
		OriginAddress: id.IP,
		DeviceID:      id.DeviceID,
	})
	if err != nil {
		// a dead refresh credential is useless to the browser
		if errors.FromError(err).Code == http.StatusUnauthorized {
			s.clearRefreshCookie(c)
		}
		response.Error(c, err)
		return
	}
	s.setRefreshCookie(c, res.RefreshSecret, res.RefreshTTL)
	response.JSON(c, sessionResponse{AccessToken: res.AccessToken, ExpiresAt: res.AccessExpiresAt, User: res.User})
}

// logout clears the cookie even when the revoke fails; the error is still
// reported so the client knows the session may outlive the cookie.
func (s *Server) logout(c *gin.Context) {
	secret := s.refreshSecret(c)
	s.clearRefreshCookie(c)
	if err := s.deps.Sessions.Logout(c.Request.Context(), secret); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (s *Server) tokenStatus(c *gin.Context) {
	status, err := s.deps.Sessions.TokenStatus(c.Request.Context(), rate.IdentityFromContext(c), mw.BearerToken(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status)
}
