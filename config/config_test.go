package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	Addr    string        `mapstructure:"addr" default:":8080"`
	Timeout time.Duration `mapstructure:"timeout" default:"5s"`
}

type limits struct {
	Enabled bool `mapstructure:"enabled" default:"true"`
	Points  int  `mapstructure:"points" default:"100" validate:"gte=1"`
}

type mock struct {
	Env    string `mapstructure:"env" default:"development" validate:"oneof=development production"`
	Server server `mapstructure:"server"`
	Limits limits `mapstructure:"limits"`
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "portal.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	p := writeFile(t, t.TempDir(), "server:\n  addr: \":9000\"\nlimits:\n  enabled: false\n")

	cfg := new(mock)
	require.NoError(t, New(cfg, WithFile(p)).Load())

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.False(t, cfg.Limits.Enabled)
	assert.Equal(t, 100, cfg.Limits.Points)
}

func TestEnvOverride(t *testing.T) {
	p := writeFile(t, t.TempDir(), "env: development\n")
	t.Setenv("PORTAL_SERVER_TIMEOUT", "30s")
	t.Setenv("PORTAL_LIMITS_POINTS", "7")

	cfg := new(mock)
	require.NoError(t, New(cfg, WithFile(p), WithEnvPrefix("PORTAL")).Load())

	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 7, cfg.Limits.Points)
}

func TestValidationFailure(t *testing.T) {
	p := writeFile(t, t.TempDir(), "env: staging\n")
	err := New(new(mock), WithFile(p)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestOptionalFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	assert.Error(t, New(new(mock), WithFile(missing)).Load())

	cfg := new(mock)
	require.NoError(t, New(cfg, WithFile(missing), WithOptionalFile()).Load())
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestReloadRunsCallbacks(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "limits:\n  points: 5\n")

	cfg := new(mock)
	c := New(cfg, WithFile(p))
	require.NoError(t, c.Load())

	called := 0
	c.OnChange(func() { called++ })

	writeFile(t, dir, "limits:\n  points: 6\n")
	require.NoError(t, c.Reload())

	assert.Equal(t, 1, called)
	c.Read(func() { assert.Equal(t, 6, cfg.Limits.Points) })
}

func TestKeys(t *testing.T) {
	got := keys(reflect.TypeOf(new(mock)), "")
	assert.ElementsMatch(t, []string{"env", "server.addr", "server.timeout", "limits.enabled", "limits.points"}, got)
}
