package postgres

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// URL, when set, is used verbatim and the discrete fields are ignored.
	URL      string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	MaxConns        int32
	MaxConnLifetime time.Duration
}

func (c *Config) Validate() error {
	if c.URL != "" {
		if _, err := url.Parse(c.URL); err != nil {
			return fmt.Errorf("invalid PostgreSQL URL: %w", err)
		}
		return nil
	}

	if c.Host == "" {
		return fmt.Errorf("PostgreSQL host is required")
	}
	if c.Port <= 0 {
		c.Port = 5432
	}
	if c.Database == "" {
		return fmt.Errorf("PostgreSQL database name is required")
	}
	if c.Username == "" {
		return fmt.Errorf("PostgreSQL username is required")
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}

	return nil
}

func (c *Config) GetType() string {
	return "postgres"
}

// GetConnectionString returns a pgx connection string.
func (c *Config) GetConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(int(c.MaxConns)))
	}
	if c.MaxConnLifetime > 0 {
		q.Set("pool_max_conn_lifetime", c.MaxConnLifetime.String())
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewConfigFromGeneric reads the keys produced by storage.NewStorage.
func NewConfigFromGeneric(get func(string) string) (*Config, error) {
	config := &Config{
		URL:      get("connection_string"),
		Host:     get("host"),
		Database: get("database"),
		Username: get("username"),
		Password: get("password"),
		SSLMode:  get("sslmode"),
	}

	if port := strings.TrimSpace(get("port")); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PostgreSQL port %q", port)
		}
		config.Port = p
	}

	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "transbot",
		Username: "postgres",
		SSLMode:  "prefer",
	}
}
