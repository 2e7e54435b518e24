package sqlite

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
		return NewAdapter(&Config{DatabasePath: cfg["path"]})
	default:
		return nil, fmt.Errorf("invalid config type for SQLite storage")
	}
}

func (f *Factory) GetType() string {
	return "sqlite"
}

func init() {
	store.Register("sqlite", &Factory{})
}
