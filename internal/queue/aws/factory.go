package aws

import (
	"fmt"
	"strconv"

	"trade-coach/internal/queue"
)

type Factory struct{}

func (f *Factory) Create(config queue.QueueConfig) (queue.Queue, error) {
	switch cfg := config.(type) {
	case *Config:
		return NewQueue(cfg)
	case queue.GenericConfig:
		parsed := &Config{
			QueueURL: cfg["queue_url"],
			Region:   cfg["region"],
		}
		if v := cfg["visibility_timeout"]; v != "" {
			if timeout, err := strconv.Atoi(v); err == nil {
				parsed.VisibilityTimeout = int32(timeout)
			}
		}
		return NewQueue(parsed)
	default:
		return nil, fmt.Errorf("invalid config type for SQS queue")
	}
}

func (f *Factory) GetType() string {
	return "sqs"
}

func init() {
	queue.Register("sqs", &Factory{})
}
