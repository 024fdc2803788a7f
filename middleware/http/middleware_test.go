package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/portal/core/auth/jwt"
	"github.com/kochabx/portal/errors"
	"github.com/kochabx/portal/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newIssuer(t *testing.T) *jwt.Issuer {
	t.Helper()
	i, err := jwt.New(&jwt.Config{Secret: testSecret, Issuer: "portal"})
	require.NoError(t, err)
	return i
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPathMatcher(t *testing.T) {
	pm := NewPathMatcher([]string{"/health", "/static/**", "/api/*/public"})

	assert.True(t, pm.Match("/health"))
	assert.False(t, pm.Match("/health/deep"))
	assert.True(t, pm.Match("/static"))
	assert.True(t, pm.Match("/static/js/app.js"))
	assert.False(t, pm.Match("/staticx"))
	assert.True(t, pm.Match("/api/v1/public"))
	assert.False(t, pm.Match("/api/v1/private"))

	var nilMatcher *PathMatcher
	assert.False(t, nilMatcher.Match("/health"))
}

func TestAuth(t *testing.T) {
	issuer := newIssuer(t)
	verify := func(token string) (*jwt.Claims, error) {
		if token == "" {
			return nil, errors.NewReason(http.StatusUnauthorized, "NO_TOKEN", "no token")
		}
		claims, err := issuer.Verify(token)
		if err != nil {
			return nil, errors.Unauthorized("invalid token").WithCause(err)
		}
		return claims, nil
	}

	r := gin.New()
	r.Use(Auth(AuthConfig{SkipPaths: []string{"/public/**"}, Verify: verify}))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})
	r.GET("/admin", RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/public/ping", func(c *gin.Context) {
		assert.Nil(t, Claims(c))
		c.Status(http.StatusOK)
	})

	do := func(path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NO_TOKEN", decode(t, w)["code"])

	w = do("/me", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	userToken, _, err := issuer.Issue(jwt.Subject{ID: "u1", Role: "user"})
	require.NoError(t, err)
	w = do("/me", "Bearer "+userToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	w = do("/me", "bearer "+userToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do("/admin", "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminToken, _, err := issuer.Issue(jwt.Subject{ID: "u2", Role: "admin"})
	require.NoError(t, err)
	w = do("/admin", "Bearer "+adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do("/public/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(c))

	c.Request.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(c))

	c.Request.Header.Set("Authorization", "Bearer  abc ")
	assert.Equal(t, "abc", BearerToken(c))
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewJSON(&buf)

	r := gin.New()
	r.Use(Recovery(RecoveryConfig{Logger: logger}))
	r.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.NotContains(t, w.Body.String(), "boom")
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewJSON(&buf)

	r := gin.New()
	r.Use(Logger(LoggerConfig{Logger: logger, SkipPaths: []string{"/health"}}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.Internal("db down"))
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, float64(500), line["status"])
	assert.Equal(t, "/fail", line["path"])
	assert.Contains(t, line["errors"], "db down")
	assert.NotContains(t, buf.String(), "secret-token")
}

func TestCors(t *testing.T) {
	r := gin.New()
	r.Use(Cors(CorsConfig{AllowOrigins: []string{"https://portal.example"}, AllowCredentials: true}))
	r.POST("/api/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://portal.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://portal.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), Logger(LoggerConfig{Logger: log.NewJSON(&buf)}))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "trace-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "trace-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "trace-42", w.Body.String())
	assert.Contains(t, buf.String(), `"request_id":"trace-42"`)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "bad id\r\n")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestCorsWithoutOrigins(t *testing.T) {
	var handler gin.HandlerFunc
	require.NotPanics(t, func() { handler = Cors(CorsConfig{AllowCredentials: true}) })

	r := gin.New()
	r.Use(handler)
	r.GET("/api/auth/csrf", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil)
	req.Header.Set("Origin", DefaultCorsConfig().AllowOrigins[0])
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultCorsConfig().AllowOrigins[0], w.Header().Get("Access-Control-Allow-Origin"))
}
