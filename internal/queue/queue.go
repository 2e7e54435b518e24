// Package queue defines the job queue contract for analysis work. Every
// adapter delivers at least once: a job is acknowledged only after the
// handler returns nil, and a redelivered job must be safe to hand to the
// handler again.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"trade-coach/internal/common/errors"
)

// Job is the wire payload describing one requested analysis.
type Job struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	SheetID     string    `json:"sheet_id"`
	SheetRange  string    `json:"sheet_range,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Validate checks the fields a worker cannot proceed without.
func (j *Job) Validate() error {
	if j.JobID == "" {
		return errors.ValidationError("job_id is required")
	}
	if j.UserID == "" {
		return errors.ValidationError("user_id is required")
	}
	if j.SheetID == "" {
		return errors.ValidationError("sheet_id is required")
	}
	return nil
}

// Encode serializes the job for transport.
func (j *Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJob parses and validates a transported job. A payload that cannot
// be decoded is a validation error; adapters acknowledge it rather than
// redeliver poison forever.
func DecodeJob(data []byte) (*Job, error) {
	job := &Job{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, errors.ValidationError("malformed job payload: " + err.Error())
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Handler processes one delivered job. A nil return acknowledges the
// message; any error leaves it for redelivery.
type Handler func(ctx context.Context, job *Job) error

// Queue is implemented by each transport adapter.
type Queue interface {
	Name() string
	// Publish enqueues a job.
	Publish(ctx context.Context, job *Job) error
	// Subscribe starts consuming in the background until ctx is cancelled.
	Subscribe(ctx context.Context, handler Handler) error
	Health() error
	Close() error
}

// QueueConfig is the configuration contract each adapter accepts.
type QueueConfig interface {
	Validate() error
	GetType() string
}

// GenericConfig carries untyped settings through the registry.
type GenericConfig map[string]string

func (g GenericConfig) Validate() error { return nil }
func (g GenericConfig) GetType() string { return g["type"] }

// QueueFactory creates an adapter from a config.
type QueueFactory interface {
	Create(config QueueConfig) (Queue, error)
	GetType() string
}
