// Package dispatch accepts analysis requests, records them, and hands them
// to the queue. The record is written before the publish so a crash between
// the two leaves a queued row a scheduler sweep can requeue, never a
// running job with no trace.
package dispatch

import (
	"context"
	"time"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/common/utils"
	"trade-coach/internal/queue"
	"trade-coach/internal/store"
)

// Request is what a caller supplies to start an analysis.
type Request struct {
	UserID     string
	SheetID    string
	SheetRange string
	Prompt     string
	StartDate  string
	EndDate    string
}

// Publisher is the queue surface the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, job *queue.Job) error
}

// Enqueuer creates the analysis record and publishes the job.
type Enqueuer struct {
	storage   store.Storage
	publisher Publisher
	logger    logging.Logger
}

func NewEnqueuer(storage store.Storage, publisher Publisher, logger logging.Logger) *Enqueuer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Enqueuer{storage: storage, publisher: publisher, logger: logger}
}

// Enqueue validates the request, persists a queued record, and publishes
// the job. The returned record carries the generated job id.
func (e *Enqueuer) Enqueue(ctx context.Context, req Request) (*store.AnalysisRecord, error) {
	if req.UserID == "" {
		return nil, errors.ValidationError("user id is required")
	}
	if req.SheetID == "" {
		return nil, errors.ValidationError("sheet id is required")
	}
	if err := validateDateBound(req.StartDate); err != nil {
		return nil, err
	}
	if err := validateDateBound(req.EndDate); err != nil {
		return nil, err
	}

	rec := &store.AnalysisRecord{
		JobID:       utils.GenerateJobID(req.UserID),
		UserID:      req.UserID,
		SheetID:     req.SheetID,
		SheetRange:  req.SheetRange,
		Prompt:      req.Prompt,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      store.StatusQueued,
		RequestedAt: time.Now().UTC(),
	}
	if err := e.storage.CreateAnalysis(ctx, rec); err != nil {
		return nil, err
	}

	job := &queue.Job{
		JobID:       rec.JobID,
		UserID:      rec.UserID,
		SheetID:     rec.SheetID,
		SheetRange:  rec.SheetRange,
		Prompt:      rec.Prompt,
		StartDate:   rec.StartDate,
		EndDate:     rec.EndDate,
		RequestedAt: rec.RequestedAt,
	}
	if err := e.publisher.Publish(ctx, job); err != nil {
		// The queued record stays behind; marking it failed here would
		// hide a queue outage behind a user-facing failure.
		e.logger.Error("Failed to publish analysis job", err,
			logging.String("job_id", rec.JobID))
		return nil, err
	}

	e.logger.Info("Analysis enqueued",
		logging.String("job_id", rec.JobID),
		logging.String("user_id", rec.UserID))
	return rec, nil
}

func validateDateBound(value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return errors.ValidationError("date bounds must use YYYY-MM-DD")
	}
	return nil
}
