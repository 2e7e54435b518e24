package rabbitmq

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
		return NewQueue(&Config{
			URL:   cfg["url"],
			Queue: cfg["queue"],
		})
	default:
		return nil, fmt.Errorf("invalid config type for RabbitMQ queue")
	}
}

func (f *Factory) GetType() string {
	return "rabbitmq"
}

func init() {
	queue.Register("rabbitmq", &Factory{})
}
