package gcp

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
			ProjectID:    cfg["project_id"],
			Topic:        cfg["topic"],
			Subscription: cfg["subscription"],
		})
	default:
		return nil, fmt.Errorf("invalid config type for Pub/Sub queue")
	}
}

func (f *Factory) GetType() string {
	return "pubsub"
}

func init() {
	queue.Register("pubsub", &Factory{})
}
