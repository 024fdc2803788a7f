package db

import (
	"strconv"
	"strings"
	"time"

	"github.com/kochabx/portal/core/tag"
)

type MySQLConfig struct {
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"3306"`
	User     string `mapstructure:"user" default:"root"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" default:"portal"`

	Charset   string        `mapstructure:"charset" default:"utf8mb4"`
	Collation string        `mapstructure:"collation" default:"utf8mb4_unicode_ci"`
	Loc       string        `mapstructure:"loc" default:"UTC"`
	Timeout   time.Duration `mapstructure:"timeout" default:"10s"`

	PoolConfig `mapstructure:"pool"`
	Level      string `mapstructure:"level" default:"silent"`
}

func (c *MySQLConfig) Driver() Driver {
	return DriverMySQL
}

func (c *MySQLConfig) Init() error {
	return tag.ApplyDefaults(c)
}

// DSN always sets parseTime, the credential timestamps depend on it.
func (c *MySQLConfig) DSN() string {
	var b strings.Builder
	b.Grow(128)

	b.WriteString(c.User)
	b.WriteByte(':')
	b.WriteString(c.Password)
	b.WriteString("@tcp(")
	b.WriteString(c.Host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(c.Port))
	b.WriteString(")/")
	b.WriteString(c.Database)

	b.WriteString("?charset=")
	b.WriteString(c.Charset)
	b.WriteString("&collation=")
	b.WriteString(c.Collation)
	b.WriteString("&parseTime=true&loc=")
	b.WriteString(c.Loc)
	b.WriteString("&timeout=")
	b.WriteString(c.Timeout.String())

	return b.String()
}

func (c *MySQLConfig) Pool() *PoolConfig {
	return c.PoolConfig.withDefaults(10, 50)
}

func (c *MySQLConfig) LogLevel() LogLevel {
	return ParseLogLevel(c.Level)
}
