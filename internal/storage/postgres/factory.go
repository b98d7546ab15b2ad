package postgres

import (
	"transbot-ops/internal/common/errors"
	"transbot-ops/internal/storage"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	switch c := config.(type) {
	case *Config:
		return NewAdapter(c)
	case storage.GenericConfig:
		pgConfig, err := NewConfigFromGeneric(c.String)
		if err != nil {
			return nil, err
		}
		return NewAdapter(pgConfig)
	default:
		return nil, errors.ConfigError("invalid config type for PostgreSQL storage")
	}
}

func (f *Factory) GetType() string {
	return "postgres"
}

func init() {
	storage.Register("postgres", &Factory{})
}
