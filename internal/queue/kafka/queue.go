// Package kafka provides a Kafka implementation of the job queue. Offsets
// are committed manually after the handler succeeds, so an uncommitted job
// is redelivered on the next rebalance or restart.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/queue"
)

type Queue struct {
	producer *kafka.Producer
	consumer *kafka.Consumer
	config   *Config
	logger   logging.Logger
}

func NewQueue(config *Config) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Kafka config: %w", err)
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": config.Brokers,
	})
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  config.Brokers,
		"group.id":           config.GroupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		producer.Close()
		return nil, errors.ConnectionError("failed to create Kafka consumer", err)
	}

	return &Queue{
		producer: producer,
		consumer: consumer,
		config:   config,
		logger:   logging.GetGlobalLogger(),
	}, nil
}

func (q *Queue) Name() string {
	return "kafka"
}

func (q *Queue) Publish(ctx context.Context, job *queue.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	body, err := job.Encode()
	if err != nil {
		return errors.InternalError("failed to encode job", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = q.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &q.config.Topic,
			Partition: kafka.PartitionAny,
		},
		// Keying by user keeps one user's jobs on one partition, in order.
		Key:   []byte(job.UserID),
		Value: body,
	}, deliveryChan)
	if err != nil {
		return errors.ConnectionError("failed to produce job to Kafka", err)
	}

	select {
	case event := <-deliveryChan:
		if msg, ok := event.(*kafka.Message); ok && msg.TopicPartition.Error != nil {
			return errors.ConnectionError("Kafka delivery failed", msg.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (q *Queue) Subscribe(ctx context.Context, handler queue.Handler) error {
	if err := q.consumer.SubscribeTopics([]string{q.config.Topic}, nil); err != nil {
		return errors.ConnectionError("failed to subscribe to Kafka topic", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.logger.Info("Kafka subscription stopped",
					logging.String("topic", q.config.Topic))
				return
			default:
			}

			msg, err := q.consumer.ReadMessage(time.Second)
			if err != nil {
				if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				q.logger.Error("Kafka read failed", err,
					logging.String("topic", q.config.Topic))
				time.Sleep(5 * time.Second)
				continue
			}

			job, err := queue.DecodeJob(msg.Value)
			if err != nil {
				q.logger.Warn("Dropping undecodable job message", logging.Err(err))
				q.commit(msg)
				continue
			}

			if err := handler(ctx, job); err != nil {
				q.logger.Error("Job handler failed, offset not committed", err,
					logging.String("job_id", job.JobID))
				continue
			}

			q.commit(msg)
		}
	}()
	return nil
}

func (q *Queue) commit(msg *kafka.Message) {
	if _, err := q.consumer.CommitMessage(msg); err != nil {
		q.logger.Error("Failed to commit Kafka offset", err)
	}
}

func (q *Queue) Health() error {
	if q.producer == nil {
		return errors.ConnectionError("Kafka producer not initialized", nil)
	}
	_, err := q.producer.GetMetadata(&q.config.Topic, false, 5000)
	if err != nil {
		return errors.ConnectionError("Kafka cluster unreachable", err)
	}
	return nil
}

func (q *Queue) Close() error {
	if q.producer != nil {
		q.producer.Close()
	}
	if q.consumer != nil {
		return q.consumer.Close()
	}
	return nil
}
