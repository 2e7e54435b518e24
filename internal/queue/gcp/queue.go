// Package gcp provides a Google Pub/Sub implementation of the job queue.
// Handler failures Nack the message so the subscription redelivers it.
package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/queue"
)

type Queue struct {
	client       *pubsub.Client
	topic        *pubsub.Topic
	subscription *pubsub.Subscription
	config       *Config
	logger       logging.Logger
}

func NewQueue(config *Config) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Pub/Sub config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	return &Queue{
		client:       client,
		topic:        client.Topic(config.Topic),
		subscription: client.Subscription(config.Subscription),
		config:       config,
		logger:       logging.GetGlobalLogger(),
	}, nil
}

func (q *Queue) Name() string {
	return "pubsub"
}

func (q *Queue) Publish(ctx context.Context, job *queue.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	body, err := job.Encode()
	if err != nil {
		return errors.InternalError("failed to encode job", err)
	}

	result := q.topic.Publish(ctx, &pubsub.Message{Data: body})
	if _, err := result.Get(ctx); err != nil {
		return errors.ConnectionError("failed to publish job to Pub/Sub", err)
	}
	return nil
}

func (q *Queue) Subscribe(ctx context.Context, handler queue.Handler) error {
	go func() {
		err := q.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			job, err := queue.DecodeJob(msg.Data)
			if err != nil {
				q.logger.Warn("Dropping undecodable job message", logging.Err(err))
				msg.Ack()
				return
			}

			if err := handler(msgCtx, job); err != nil {
				q.logger.Error("Job handler failed, message will be redelivered", err,
					logging.String("job_id", job.JobID))
				msg.Nack()
				return
			}

			msg.Ack()
		})
		if err != nil && ctx.Err() == nil {
			q.logger.Error("Pub/Sub receive stopped", err,
				logging.String("subscription", q.config.Subscription))
		}
	}()
	return nil
}

func (q *Queue) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := q.subscription.Exists(ctx)
	if err != nil {
		return errors.ConnectionError("Pub/Sub unreachable", err)
	}
	if !exists {
		return errors.ConfigError(fmt.Sprintf("subscription %s does not exist", q.config.Subscription))
	}
	return nil
}

func (q *Queue) Close() error {
	q.topic.Stop()
	return q.client.Close()
}
