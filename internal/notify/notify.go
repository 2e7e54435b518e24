// Package notify announces terminal job states on an SNS topic so other
// systems (mobile push, email digests) can react without polling the API.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/store"
)

// Notifier publishes a terminal analysis record. Implementations must be
// safe to call from concurrent workers.
type Notifier interface {
	AnalysisFinished(ctx context.Context, rec *store.AnalysisRecord) error
}

// NopNotifier is used when no topic is configured.
type NopNotifier struct{}

func (NopNotifier) AnalysisFinished(ctx context.Context, rec *store.AnalysisRecord) error {
	return nil
}

type message struct {
	JobID         string     `json:"job_id"`
	UserID        string     `json:"user_id"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// SNSNotifier publishes to one topic with the status as a message attribute
// so subscribers can filter without parsing the body.
type SNSNotifier struct {
	client   *sns.Client
	topicARN string
	logger   logging.Logger
}

func NewSNSNotifier(ctx context.Context, region, topicARN string, logger logging.Logger) (*SNSNotifier, error) {
	if topicARN == "" {
		return nil, errors.ValidationError("sns topic arn is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(region))
	if err != nil {
		return nil, errors.ConnectionError("failed to load AWS config", err)
	}

	return &SNSNotifier{
		client:   sns.NewFromConfig(awsCfg),
		topicARN: topicARN,
		logger:   logger,
	}, nil
}

func (n *SNSNotifier) AnalysisFinished(ctx context.Context, rec *store.AnalysisRecord) error {
	body, err := json.Marshal(message{
		JobID:         rec.JobID,
		UserID:        rec.UserID,
		Status:        string(rec.Status),
		FailureReason: rec.FailureReason,
		CompletedAt:   rec.CompletedAt,
	})
	if err != nil {
		return errors.InternalError("failed to encode notification", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"Status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(rec.Status)),
			},
		},
	})
	if err != nil {
		return errors.ConnectionError("sns", err)
	}

	n.logger.Debug("Published analysis notification",
		logging.String("job_id", rec.JobID),
		logging.String("status", string(rec.Status)))
	return nil
}
