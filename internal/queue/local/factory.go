package local

import (
	"fmt"

	"trade-coach/internal/queue"
)

type Factory struct{}

func (f *Factory) Create(config queue.QueueConfig) (queue.Queue, error) {
	switch cfg := config.(type) {
	case *Config:
		return NewQueue(cfg)
	case queue.GenericConfig:
		return NewQueue(&Config{DatabasePath: cfg["path"]})
	default:
		return nil, fmt.Errorf("invalid config type for local queue")
	}
}

func (f *Factory) GetType() string {
	return "local"
}

func init() {
	queue.Register("local", &Factory{})
}
