package store

import (
	"fmt"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/config"
)

// NewStorage creates a storage adapter based on DATABASE_TYPE. The chosen
// adapter package must be blank-imported by the caller so its factory is
// registered.
func NewStorage(cfg *config.Config) (Storage, error) {
	var storageConfig StorageConfig

	switch cfg.DatabaseType {
	case "sqlite":
		storageConfig = GenericConfig{
			"type": "sqlite",
			"path": cfg.DatabasePath,
		}

	case "postgres", "postgresql":
		storageConfig = GenericConfig{
			"type":     "postgres",
			"host":     cfg.PostgresHost,
			"port":     cfg.PostgresPort,
			"database": cfg.PostgresDB,
			"username": cfg.PostgresUser,
			"password": cfg.PostgresPassword,
			"sslmode":  cfg.PostgresSSLMode,
		}

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}

	return Create(storageConfig.GetType(), storageConfig)
}
