package sqlite

import (
	"fmt"
	"strings"
)

const memoryPath = ":memory:"

type Config struct {
	DatabasePath string
	// BusyTimeoutMS is how long a writer waits on a locked database.
	BusyTimeoutMS int
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.BusyTimeoutMS < 0 {
		return fmt.Errorf("busy timeout must not be negative")
	}
	return nil
}

func (c *Config) GetType() string {
	return "sqlite"
}

// GetConnectionString returns the go-sqlite3 DSN.
func (c *Config) GetConnectionString() string {
	if c.IsMemory() {
		return memoryPath
	}

	timeout := c.BusyTimeoutMS
	if timeout == 0 {
		timeout = 5000
	}

	sep := "?"
	if strings.Contains(c.DatabasePath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d&_journal_mode=WAL", c.DatabasePath, sep, timeout)
}

// IsMemory reports whether the database lives in memory only.
func (c *Config) IsMemory() bool {
	return c.DatabasePath == memoryPath
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath:  "./transbot_ops.db",
		BusyTimeoutMS: 5000,
	}
}
