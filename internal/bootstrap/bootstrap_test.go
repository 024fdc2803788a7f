package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/portal/internal/conf"
	"github.com/kochabx/portal/internal/user"
	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func loadConfig(t *testing.T, extra string) *conf.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portal.yaml")
	body := fmt.Sprintf(`
http:
  addr: 127.0.0.1:18080
db:
  sqlite:
    file_path: ":memory:"
    memory_name: bootstrap-%d
jwt:
  secret: jwt-secret-0123456789abcdef012345
csrf:
  secret: csrf-secret-0123456789abcdef01234
cache:
  sweep_interval: 0s
%s`, time.Now().UnixNano(), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, _, err := conf.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuildAndLogin(t *testing.T) {
	cfg := loadConfig(t, "notify:\n  driver: none\n")
	ctx := context.Background()

	rt, err := Build(ctx, cfg, log.NewJSON(&strings.Builder{}))
	require.NoError(t, err)
	defer rt.Close(ctx)

	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.Notifier)
	assert.False(t, rt.Cache.Degraded())
	require.NoError(t, rt.Migrate(ctx))

	u, err := rt.Users.Create(ctx, user.CreateParams{Email: "Reader@Example.com", Name: "Reader", Password: "correct horse", Approved: true})
	require.NoError(t, err)

	res, err := rt.Sessions.Login(ctx, session.LoginInput{Email: "reader@example.com", Password: "correct horse", OriginAddress: "203.0.113.9"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.RefreshSecret)

	claims, err := rt.Sessions.VerifyAccess(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
}

func TestServerEndpoints(t *testing.T) {
	cfg := loadConfig(t, "")
	ctx := context.Background()

	rt, err := Build(ctx, cfg, log.NewJSON(&strings.Builder{}))
	require.NoError(t, err)
	defer rt.Close(ctx)
	require.NotNil(t, rt.Notifier)
	require.NoError(t, rt.Migrate(ctx))

	srv, err := rt.Server()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:18080", srv.Addr())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"ok"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portal_cache_degraded")
}

func TestPurgerRunOnce(t *testing.T) {
	cfg := loadConfig(t, "notify:\n  driver: none\n")
	ctx := context.Background()

	rt, err := Build(ctx, cfg, log.NewJSON(&strings.Builder{}))
	require.NoError(t, err)
	defer rt.Close(ctx)
	require.NoError(t, rt.Migrate(ctx))

	p, err := rt.Purger()
	require.NoError(t, err)
	n, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	cfg := loadConfig(t, "")
	cfg.DB.Driver = "oracle"

	rt, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
	assert.Nil(t, rt)
}
