package postgres

import (
	"fmt"

	"trade-coach/internal/store"
)

type Factory struct{}

func (f *Factory) Create(config store.StorageConfig) (store.Storage, error) {
	switch cfg := config.(type) {
	case *Config:
		return NewAdapter(cfg)
	case store.GenericConfig:
		return NewAdapter(&Config{
			Host:     cfg["host"],
			Port:     cfg["port"],
			Database: cfg["database"],
			Username: cfg["username"],
			Password: cfg["password"],
			SSLMode:  cfg["sslmode"],
		})
	default:
		return nil, fmt.Errorf("invalid config type for PostgreSQL storage")
	}
}

func (f *Factory) GetType() string {
	return "postgres"
}

func init() {
	store.Register("postgres", &Factory{})
}
