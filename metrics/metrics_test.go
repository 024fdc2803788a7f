package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, float64(3), testutil.ToFloat64(m.requests.WithLabelValues("/api/users/:id", "GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
}

func TestCollectors(t *testing.T) {
	m := New()

	m.ObserveSession("login", "ok")
	m.ObserveSession("login", "INVALID_CREDENTIALS")
	m.ObserveSession("login", "ok")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.sessionOps.WithLabelValues("login", "ok")))

	m.CacheMode(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheDegraded))
	m.CacheMode(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.cacheDegraded))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheFlips))

	m.PurgeResult(5, nil)
	m.PurgeResult(0, errors.New("db down"))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.purged))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.purgeErrors))
}

func TestHandler(t *testing.T) {
	m := New(WithBuildInfoCollector())
	m.ObserveSession("refresh", "ok")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "portal_session_operations_total"))
}
