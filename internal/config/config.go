// Package config provides configuration management for the transbot ops
// service. It loads every setting from environment variables with sensible
// defaults and validates the result before the application starts. Nothing
// else in the module reads the environment: the Config struct is passed to
// the constructors that need it.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FORMAT: console or json (default: console)
//   - LOG_FILE: Optional log file; stdout when empty
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./transbot_ops.db)
//   - DATABASE_URL: PostgreSQL connection URL; overrides the POSTGRES_* settings
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis Configuration (optional, disabled when REDIS_ADDRESS is empty):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE
//
// Request Signing:
//   - TRANSBOT_SIGNING_SECRET: Secret for SIGNING_KEY_ID
//   - SIGNING_KEY_ID: Key id used on outbound calls (default: ops-admin-ui)
//   - SIGNING_KEYS: Extra accepted keys as "id:secret,id:secret"
//   - SIGNATURE_SKEW_SECONDS: Allowed clock skew (default: 300)
//   - FLAG_ENVIRONMENT: Environment label for flag lookups (default: production)
//   - FLAG_CACHE_TTL: How long resolved flags are cached; 0 disables (default: 30s)
//
// Nonce Ledger:
//   - NONCE_STORE: sql, redis or memory (default: sql)
//   - NONCE_RETENTION: How long nonces are kept (default: 2 x skew)
//   - NONCE_PRUNE_SCHEDULE: Cron spec for pruning (default: @every 5m)
//
// DLQ Replay Worker:
//   - REPLAY_WORKER_URL: Endpoint that performs replays
//   - REPLAY_WORKER_TIMEOUT: Outbound call timeout (default: 15s)
//
// Admin Authentication:
//   - AUTH_MODE: jwt or remote (default: jwt)
//   - AUTH_JWT_SECRET: HS256 secret for admin bearer tokens (jwt mode)
//   - IDENTITY_URL: User endpoint of the identity provider (remote mode)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
//   - RATE_LIMIT_DEFAULT: Requests per window (default: 60)
//   - RATE_LIMIT_WINDOW: Rate limit time window (default: 60s)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"transbot-ops/internal/common/validation"
)

// Supported values for the enumerated settings.
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"

	NonceStoreSQL    = "sql"
	NonceStoreRedis  = "redis"
	NonceStoreMemory = "memory"

	AuthModeJWT    = "jwt"
	AuthModeRemote = "remote"

	DefaultSigningKeyID = "ops-admin-ui"
	DefaultSkewSeconds  = 300
)

// Config holds all configuration values for the service.
//
// The configuration is loaded using Load() and should be validated using
// Validate() before use.
type Config struct {
	// Application settings
	Port      string
	LogLevel  string
	LogFormat string
	LogFile   string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration, empty address disables redis
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// Request signing
	SigningSecret      string
	SigningKeyID       string
	SigningKeys        string
	SkewSeconds        int64
	FlagEnvironment    string
	FlagCacheTTL       time.Duration
	NonceStore         string
	NonceRetention     time.Duration
	NoncePruneSchedule string

	// Replay worker
	ReplayWorkerURL     string
	ReplayWorkerTimeout time.Duration

	// Admin authentication
	AuthMode      string
	AuthJWTSecret string
	IdentityURL   string

	// Rate limiting configuration
	RateLimitEnabled bool
	RateLimitDefault int
	RateLimitWindow  time.Duration
}

// Load creates a new Config instance with values loaded from environment variables.
// If an environment variable is not set, the corresponding default value is used.
//
// This function does not validate the configuration; call Validate() on the
// returned Config.
func Load() *Config {
	skew := getInt64Env("SIGNATURE_SKEW_SECONDS", DefaultSkewSeconds)

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", ""),

		DatabaseType:     strings.ToLower(getEnv("DATABASE_TYPE", DatabaseSQLite)),
		DatabasePath:     getEnv("DATABASE_PATH", "./transbot_ops.db"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "transbot"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		SigningSecret:      getEnv("TRANSBOT_SIGNING_SECRET", ""),
		SigningKeyID:       getEnv("SIGNING_KEY_ID", DefaultSigningKeyID),
		SigningKeys:        getEnv("SIGNING_KEYS", ""),
		SkewSeconds:        skew,
		FlagEnvironment:    getEnv("FLAG_ENVIRONMENT", "production"),
		FlagCacheTTL:       getDurationEnv("FLAG_CACHE_TTL", 30*time.Second),
		NonceStore:         strings.ToLower(getEnv("NONCE_STORE", NonceStoreSQL)),
		NonceRetention:     getDurationEnv("NONCE_RETENTION", 2*time.Duration(skew)*time.Second),
		NoncePruneSchedule: getEnv("NONCE_PRUNE_SCHEDULE", "@every 5m"),

		ReplayWorkerURL:     getEnv("REPLAY_WORKER_URL", ""),
		ReplayWorkerTimeout: getDurationEnv("REPLAY_WORKER_TIMEOUT", 15*time.Second),

		AuthMode:      strings.ToLower(getEnv("AUTH_MODE", AuthModeJWT)),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		IdentityURL:   getEnv("IDENTITY_URL", ""),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getIntEnv("RATE_LIMIT_DEFAULT", 60),
		RateLimitWindow:  getDurationEnv("RATE_LIMIT_WINDOW", 60*time.Second),
	}
}

// SigningKeyTable returns every accepted signing key, keyed by key id. The
// secret from TRANSBOT_SIGNING_SECRET is registered under SigningKeyID.
func (c *Config) SigningKeyTable() (map[string]string, error) {
	keys := make(map[string]string)

	if c.SigningSecret != "" {
		keys[c.SigningKeyID] = c.SigningSecret
	}

	for _, entry := range strings.Split(c.SigningKeys, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, secret, ok := strings.Cut(entry, ":")
		id, secret = strings.TrimSpace(id), strings.TrimSpace(secret)
		if !ok || id == "" || secret == "" {
			return nil, fmt.Errorf("SIGNING_KEYS entry %q must be formatted as id:secret", entry)
		}
		if err := validation.Default().ValidateVar(id, "key_id"); err != nil {
			return nil, fmt.Errorf("SIGNING_KEYS key id %q may not contain whitespace or ';'", id)
		}
		if _, dup := keys[id]; dup {
			return nil, fmt.Errorf("SIGNING_KEYS declares key id %q more than once", id)
		}
		keys[id] = secret
	}

	return keys, nil
}

// UsesPostgres reports whether the postgres adapter is selected.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseType == DatabasePostgres || c.DatabaseType == "postgresql"
}

// RedisEnabled reports whether a redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool spellings; anything else yields
// the default.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for values that are set but unparseable so Validate
// can reject them instead of silently using the default.
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

func getInt64Env(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return -1
	}
	return parsed
}

// getDurationEnv accepts Go durations ("90s") and bare seconds ("90").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return -1
}

// Validate checks required fields, value ranges and cross-field
// dependencies. The application calls it before wiring anything.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch {
	case c.DatabaseType == DatabaseSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when using SQLite")
		}
	case c.UsesPostgres():
		if c.DatabaseURL == "" {
			if c.PostgresHost == "" {
				return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
			}
			if c.PostgresDB == "" {
				return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
			}
			if c.PostgresUser == "" {
				return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
			}
			if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
				return fmt.Errorf("POSTGRES_PORT must be a valid port number")
			}
		}
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.RedisEnabled() {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if err := validation.Default().ValidateVar(c.SigningKeyID, "key_id"); err != nil {
		return fmt.Errorf("SIGNING_KEY_ID must be non-empty without whitespace or ';'")
	}
	if _, err := c.SigningKeyTable(); err != nil {
		return err
	}
	if c.SkewSeconds < 1 {
		return fmt.Errorf("SIGNATURE_SKEW_SECONDS must be a positive number")
	}

	if c.FlagCacheTTL < 0 {
		return fmt.Errorf("FLAG_CACHE_TTL must be a duration, 0 disables the cache")
	}

	switch c.NonceStore {
	case NonceStoreSQL, NonceStoreMemory:
	case NonceStoreRedis:
		if !c.RedisEnabled() {
			return fmt.Errorf("NONCE_STORE=redis requires REDIS_ADDRESS")
		}
	default:
		return fmt.Errorf("NONCE_STORE must be 'sql', 'redis' or 'memory'")
	}
	if c.NonceRetention < time.Duration(c.SkewSeconds)*time.Second {
		return fmt.Errorf("NONCE_RETENTION must be at least SIGNATURE_SKEW_SECONDS")
	}
	if err := validation.Default().ValidateVar(c.NoncePruneSchedule, "cron_expression"); err != nil {
		return fmt.Errorf("NONCE_PRUNE_SCHEDULE must be a cron spec such as '@every 5m'")
	}

	if c.ReplayWorkerURL != "" {
		u, err := url.Parse(c.ReplayWorkerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("REPLAY_WORKER_URL must be an absolute http(s) URL")
		}
		if c.SigningSecret == "" {
			return fmt.Errorf("TRANSBOT_SIGNING_SECRET is required when REPLAY_WORKER_URL is set")
		}
	}
	if c.ReplayWorkerTimeout <= 0 {
		return fmt.Errorf("REPLAY_WORKER_TIMEOUT must be a positive duration")
	}

	switch c.AuthMode {
	case AuthModeJWT:
		if len(c.AuthJWTSecret) < 32 {
			return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters long for security")
		}
	case AuthModeRemote:
		u, err := url.Parse(c.IdentityURL)
		if c.IdentityURL == "" || err != nil || u.Host == "" {
			return fmt.Errorf("IDENTITY_URL must be an absolute URL when AUTH_MODE=remote")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be 'jwt' or 'remote'")
	}

	if c.RateLimitEnabled {
		if c.RateLimitDefault < 1 {
			return fmt.Errorf("RATE_LIMIT_DEFAULT must be a positive number")
		}
		if c.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be a valid duration (e.g., '60s', '1m')")
		}
	}

	return nil
}
