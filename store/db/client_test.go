package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) *SQLiteConfig {
	return &SQLiteConfig{FilePath: MemoryPath, MemoryName: fmt.Sprintf("db-%d", time.Now().UnixNano())}
}

func TestNewSQLiteMemory(t *testing.T) {
	client, err := New(memoryConfig(t), WithSlowQuery(100*time.Millisecond))
	require.NoError(t, err)
	defer client.Close()

	require.NotNil(t, client.DB())
	assert.True(t, client.IsHealthy(context.Background()))
	assert.Equal(t, 1, client.Stats().MaxOpenConnections)

	type row struct {
		ID   uint
		Name string
	}
	require.NoError(t, client.DB().AutoMigrate(&row{}))
	require.NoError(t, client.DB().Create(&row{Name: "a"}).Error)

	var got row
	require.NoError(t, client.DB().First(&got).Error)
	assert.Equal(t, "a", got.Name)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := &Config{Driver: "oracle"}
	_, err = cfg.Selected()
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestDSN(t *testing.T) {
	pg := &PostgresConfig{Password: "pw"}
	require.NoError(t, pg.Init())
	assert.Contains(t, pg.DSN(), "host=localhost port=5432 user=postgres password=pw dbname=portal")

	my := &MySQLConfig{}
	require.NoError(t, my.Init())
	assert.Contains(t, my.DSN(), "root:@tcp(localhost:3306)/portal?charset=utf8mb4")
	assert.Contains(t, my.DSN(), "parseTime=true")

	lite := &SQLiteConfig{FilePath: MemoryPath}
	require.NoError(t, lite.Init())
	assert.Equal(t, "file:portal?mode=memory&cache=shared&_busy_timeout=5000&_foreign_keys=true", lite.DSN())
	assert.Equal(t, 1, lite.Pool().MaxOpenConns)
	assert.Equal(t, 50, pg.Pool().MaxOpenConns)
}

func TestSelected(t *testing.T) {
	cfg := &Config{Driver: DriverPostgres}
	dc, err := cfg.Selected()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, dc.Driver())
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	ctx := context.Background()

	calls := 0
	err := Retry(ctx, cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(ctx, cfg, func(context.Context) error {
		calls++
		return errors.New("dial tcp: connection refused")
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("UNIQUE constraint failed")
	err = Retry(ctx, cfg, func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Retry(ctx, cfg, func(context.Context) error {
		calls++
		return Final(fmt.Errorf("%w: commit: %w", ErrUnavailable, driver.ErrBadConn))
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	d := cfg.Backoff(0)
	assert.GreaterOrEqual(t, d, 75*time.Millisecond)
	assert.LessOrEqual(t, d, 125*time.Millisecond)
	assert.LessOrEqual(t, cfg.Backoff(10), 375*time.Millisecond)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("query: %w", driver.ErrBadConn)))
	assert.False(t, IsTransient(errors.New("record not found")))
	assert.False(t, IsTransient(Final(driver.ErrBadConn)))
	assert.NoError(t, Final(nil))
}
