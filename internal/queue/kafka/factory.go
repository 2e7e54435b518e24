package kafka

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
			Brokers: cfg["brokers"],
			Topic:   cfg["topic"],
			GroupID: cfg["group_id"],
		})
	default:
		return nil, fmt.Errorf("invalid config type for Kafka queue")
	}
}

func (f *Factory) GetType() string {
	return "kafka"
}

func init() {
	queue.Register("kafka", &Factory{})
}
