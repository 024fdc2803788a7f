package db

import (
	"fmt"
	"strings"
	"time"
)

type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

type LogLevel int

const (
	LogLevelSilent LogLevel = iota + 1
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// PoolConfig zero values are replaced by driver specific defaults.
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

func (p *PoolConfig) withDefaults(idle, open int) *PoolConfig {
	if p.MaxIdleConns == 0 {
		p.MaxIdleConns = idle
	}
	if p.MaxOpenConns == 0 {
		p.MaxOpenConns = open
	}
	if p.ConnMaxLifetime == 0 {
		p.ConnMaxLifetime = time.Hour
	}
	if p.ConnMaxIdleTime == 0 {
		p.ConnMaxIdleTime = 10 * time.Minute
	}
	return p
}

// DriverConfig is implemented by every supported driver section.
type DriverConfig interface {
	Driver() Driver
	DSN() string
	Pool() *PoolConfig
	Init() error
	LogLevel() LogLevel
}

// ParseLogLevel maps a level name to the gorm logger level. Unknown names
// are silent.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return LogLevelError
	case "warn":
		return LogLevelWarn
	case "info":
		return LogLevelInfo
	default:
		return LogLevelSilent
	}
}

// Config selects one driver section. Only the section named by Driver is
// used.
type Config struct {
	Driver   Driver         `mapstructure:"driver" default:"sqlite" validate:"oneof=sqlite postgres mysql"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	// per statement deadline applied by callers
	Timeout time.Duration `mapstructure:"timeout" default:"5s"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// Selected returns the driver section named by Driver.
func (c *Config) Selected() (DriverConfig, error) {
	switch c.Driver {
	case DriverPostgres:
		return &c.Postgres, nil
	case DriverMySQL:
		return &c.MySQL, nil
	case DriverSQLite, "":
		return &c.SQLite, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, c.Driver)
	}
}
