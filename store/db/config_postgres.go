package db

import (
	"strconv"
	"strings"

	"github.com/kochabx/portal/core/tag"
)

type PostgresConfig struct {
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user" default:"postgres"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" default:"portal"`

	SSLMode        string `mapstructure:"sslmode" default:"disable"`
	TimeZone       string `mapstructure:"timezone" default:"UTC"`
	ConnectTimeout int    `mapstructure:"connect_timeout" default:"10"`

	PoolConfig `mapstructure:"pool"`
	Level      string `mapstructure:"level" default:"silent"`
}

func (c *PostgresConfig) Driver() Driver {
	return DriverPostgres
}

func (c *PostgresConfig) Init() error {
	return tag.ApplyDefaults(c)
}

func (c *PostgresConfig) DSN() string {
	var b strings.Builder
	b.Grow(128)

	b.WriteString("host=")
	b.WriteString(c.Host)
	b.WriteString(" port=")
	b.WriteString(strconv.Itoa(c.Port))
	b.WriteString(" user=")
	b.WriteString(c.User)
	b.WriteString(" password=")
	b.WriteString(c.Password)
	b.WriteString(" dbname=")
	b.WriteString(c.Database)
	b.WriteString(" sslmode=")
	b.WriteString(c.SSLMode)
	b.WriteString(" TimeZone=")
	b.WriteString(c.TimeZone)
	b.WriteString(" connect_timeout=")
	b.WriteString(strconv.Itoa(c.ConnectTimeout))

	return b.String()
}

func (c *PostgresConfig) Pool() *PoolConfig {
	return c.PoolConfig.withDefaults(10, 50)
}

func (c *PostgresConfig) LogLevel() LogLevel {
	return ParseLogLevel(c.Level)
}
