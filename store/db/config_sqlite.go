package db

import (
	"strconv"
	"strings"

	"github.com/kochabx/portal/core/tag"
)

// MemoryPath makes SQLiteConfig open a shared in-memory database.
const MemoryPath = ":memory:"

type SQLiteConfig struct {
	FilePath string `mapstructure:"file_path" default:"./portal.db"`
	// only used with MemoryPath; connections sharing a name share the data
	MemoryName string `mapstructure:"memory_name" default:"portal"`

	JournalMode string `mapstructure:"journal_mode" default:"WAL"`
	BusyTimeout int    `mapstructure:"busy_timeout" default:"5000"`
	SyncMode    string `mapstructure:"sync_mode" default:"NORMAL"`
	ForeignKeys bool   `mapstructure:"foreign_keys" default:"true"`

	PoolConfig `mapstructure:"pool"`
	Level      string `mapstructure:"level" default:"silent"`
}

func (c *SQLiteConfig) Driver() Driver {
	return DriverSQLite
}

func (c *SQLiteConfig) Init() error {
	return tag.ApplyDefaults(c)
}

func (c *SQLiteConfig) DSN() string {
	var b strings.Builder
	b.Grow(128)

	b.WriteString("file:")
	if c.FilePath == MemoryPath {
		b.WriteString(c.MemoryName)
		b.WriteString("?mode=memory&cache=shared")
	} else {
		b.WriteString(c.FilePath)
		b.WriteString("?_journal_mode=")
		b.WriteString(c.JournalMode)
		b.WriteString("&_synchronous=")
		b.WriteString(c.SyncMode)
	}
	b.WriteString("&_busy_timeout=")
	b.WriteString(strconv.Itoa(c.BusyTimeout))
	b.WriteString("&_foreign_keys=")
	b.WriteString(strconv.FormatBool(c.ForeignKeys))

	return b.String()
}

// Pool defaults to a single connection: sqlite serializes writers anyway and
// a single connection keeps transactions from hitting SQLITE_BUSY.
func (c *SQLiteConfig) Pool() *PoolConfig {
	if c.FilePath == MemoryPath {
		// the database disappears with its last connection
		c.ConnMaxLifetime, c.ConnMaxIdleTime = -1, -1
	}
	return c.PoolConfig.withDefaults(1, 1)
}

func (c *SQLiteConfig) LogLevel() LogLevel {
	return ParseLogLevel(c.Level)
}
