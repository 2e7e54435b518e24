// Package aws provides an SQS implementation of the job queue. Messages are
// deleted only after the handler succeeds; failed handlers leave the message
// to reappear after the visibility timeout.
package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/queue"
)

type Queue struct {
	client *sqs.Client
	config *Config
	logger logging.Logger
}

func NewQueue(config *Config) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS config: %w", err)
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithRegion(config.Region),
	)
	if err != nil {
		return nil, errors.ConnectionError("failed to load AWS config", err)
	}

	return &Queue{
		client: sqs.NewFromConfig(awsCfg),
		config: config,
		logger: logging.GetGlobalLogger(),
	}, nil
}

func (q *Queue) Name() string {
	return "sqs"
}

func (q *Queue) Publish(ctx context.Context, job *queue.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	body, err := job.Encode()
	if err != nil {
		return errors.InternalError("failed to encode job", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.config.QueueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return errors.ConnectionError("failed to publish job to SQS", err)
	}
	return nil
}

func (q *Queue) Subscribe(ctx context.Context, handler queue.Handler) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				q.logger.Info("SQS subscription stopped",
					logging.String("queue_url", q.config.QueueURL))
				return
			default:
				q.poll(ctx, handler)
			}
		}
	}()
	return nil
}

func (q *Queue) poll(ctx context.Context, handler queue.Handler) {
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.config.QueueURL),
		MaxNumberOfMessages: q.config.MaxMessages,
		VisibilityTimeout:   q.config.VisibilityTimeout,
		WaitTimeSeconds:     q.config.WaitTimeSeconds,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		q.logger.Error("SQS receive failed", err,
			logging.String("queue_url", q.config.QueueURL))
		time.Sleep(5 * time.Second)
		return
	}

	for _, message := range result.Messages {
		job, err := queue.DecodeJob([]byte(aws.ToString(message.Body)))
		if err != nil {
			// Poison message; delete rather than redeliver forever.
			q.logger.Warn("Dropping undecodable job message", logging.Err(err))
			q.delete(ctx, message.ReceiptHandle)
			continue
		}

		if err := handler(ctx, job); err != nil {
			q.logger.Error("Job handler failed, message will be redelivered", err,
				logging.String("job_id", job.JobID))
			continue
		}

		q.delete(ctx, message.ReceiptHandle)
	}
}

func (q *Queue) delete(ctx context.Context, receiptHandle *string) {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.config.QueueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil && ctx.Err() == nil {
		q.logger.Error("Failed to delete SQS message", err)
	}
}

func (q *Queue) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.config.QueueURL),
	})
	if err != nil {
		return errors.ConnectionError("SQS queue unreachable", err)
	}
	return nil
}

func (q *Queue) Close() error {
	return nil
}
