// Package rabbitmq provides an AMQP implementation of the job queue backed
// by a durable queue with manual acknowledgement.
package rabbitmq

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/queue"
)

type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *Config
	logger  logging.Logger
}

func NewQueue(config *Config) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid RabbitMQ config: %w", err)
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to RabbitMQ", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.ConnectionError("failed to open channel", err)
	}

	if _, err := channel.QueueDeclare(
		config.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.ConnectionError("failed to declare queue", err)
	}

	if err := channel.Qos(config.Prefetch, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.ConnectionError("failed to set prefetch", err)
	}

	return &Queue{
		conn:    conn,
		channel: channel,
		config:  config,
		logger:  logging.GetGlobalLogger(),
	}, nil
}

func (q *Queue) Name() string {
	return "rabbitmq"
}

func (q *Queue) Publish(ctx context.Context, job *queue.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	body, err := job.Encode()
	if err != nil {
		return errors.InternalError("failed to encode job", err)
	}

	err = q.channel.Publish(
		"", // default exchange
		q.config.Queue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return errors.ConnectionError("failed to publish job to RabbitMQ", err)
	}
	return nil
}

func (q *Queue) Subscribe(ctx context.Context, handler queue.Handler) error {
	deliveries, err := q.channel.Consume(
		q.config.Queue,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return errors.ConnectionError("failed to start consumer", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.logger.Info("RabbitMQ subscription stopped",
					logging.String("queue", q.config.Queue))
				return
			case delivery, ok := <-deliveries:
				if !ok {
					if ctx.Err() == nil {
						q.logger.Warn("RabbitMQ delivery channel closed")
					}
					return
				}

				job, err := queue.DecodeJob(delivery.Body)
				if err != nil {
					q.logger.Warn("Dropping undecodable job message", logging.Err(err))
					delivery.Ack(false)
					continue
				}

				if err := handler(ctx, job); err != nil {
					q.logger.Error("Job handler failed, message will be redelivered", err,
						logging.String("job_id", job.JobID))
					delivery.Nack(false, true)
					continue
				}

				delivery.Ack(false)
			}
		}
	}()
	return nil
}

func (q *Queue) Health() error {
	if q.conn == nil || q.conn.IsClosed() {
		return errors.ConnectionError("RabbitMQ connection is closed", nil)
	}
	return nil
}

func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
