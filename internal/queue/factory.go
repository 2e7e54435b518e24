package queue

import (
	"fmt"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/config"
)

// NewQueue creates a queue adapter based on QUEUE_TYPE. The chosen adapter
// package must be blank-imported by the caller so its factory is registered.
func NewQueue(cfg *config.Config) (Queue, error) {
	var queueConfig QueueConfig

	switch cfg.QueueType {
	case "sqs":
		queueConfig = GenericConfig{
			"type":      "sqs",
			"queue_url": cfg.SQSQueueURL,
			"region":    cfg.AWSRegion,
		}

	case "pubsub":
		queueConfig = GenericConfig{
			"type":         "pubsub",
			"project_id":   cfg.PubSubProjectID,
			"topic":        cfg.PubSubTopic,
			"subscription": cfg.PubSubSubscription,
		}

	case "rabbitmq":
		queueConfig = GenericConfig{
			"type":  "rabbitmq",
			"url":   cfg.RabbitMQURL,
			"queue": cfg.RabbitMQQueue,
		}

	case "kafka":
		queueConfig = GenericConfig{
			"type":     "kafka",
			"brokers":  cfg.KafkaBrokers,
			"topic":    cfg.KafkaTopic,
			"group_id": cfg.KafkaGroupID,
		}

	case "local":
		queueConfig = GenericConfig{
			"type": "local",
			"path": cfg.DatabasePath,
		}

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported queue type: %s", cfg.QueueType))
	}

	return Create(queueConfig.GetType(), queueConfig)
}
