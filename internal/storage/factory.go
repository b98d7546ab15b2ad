package storage

import (
	"fmt"

	"transbot-ops/internal/common/errors"
	"transbot-ops/internal/config"
)

// NewStorage creates the adapter selected by DATABASE_TYPE using the
// default registry.
func NewStorage(cfg *config.Config) (Storage, error) {
	return NewStorageFromRegistry(DefaultRegistry, cfg)
}

// NewStorageFromRegistry is NewStorage with an explicit registry.
func NewStorageFromRegistry(registry *Registry, cfg *config.Config) (Storage, error) {
	var storageConfig GenericConfig

	switch {
	case cfg.DatabaseType == config.DatabaseSQLite:
		storageConfig = GenericConfig{
			"type": config.DatabaseSQLite,
			"path": cfg.DatabasePath,
		}

	case cfg.UsesPostgres():
		storageConfig = GenericConfig{
			"type":              config.DatabasePostgres,
			"connection_string": cfg.DatabaseURL,
			"host":              cfg.PostgresHost,
			"port":              cfg.PostgresPort,
			"database":          cfg.PostgresDB,
			"username":          cfg.PostgresUser,
			"password":          cfg.PostgresPassword,
			"sslmode":           cfg.PostgresSSLMode,
		}

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}

	return registry.Create(storageConfig.GetType(), storageConfig)
}
