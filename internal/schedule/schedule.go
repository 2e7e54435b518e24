// Package schedule runs proactive analyses on a cron spec. Each tick takes
// every user's most recent analysis and enqueues a fresh one over the past
// week with the same sheet.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/dispatch"
	"trade-coach/internal/store"
)

const defaultPrompt = "Review the past week of trading. Focus on what changed since the last review."

// windowDays is how far back each scheduled analysis looks.
const windowDays = 7

// Enqueuer starts one analysis. Satisfied by dispatch.Enqueuer.
type Enqueuer interface {
	Enqueue(ctx context.Context, req dispatch.Request) (*store.AnalysisRecord, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	storage  store.Storage
	enqueuer Enqueuer
	spec     string
	cron     *cron.Cron
	logger   logging.Logger
}

func NewScheduler(storage store.Storage, enqueuer Enqueuer, spec string, logger logging.Logger) (*Scheduler, error) {
	if spec == "" {
		return nil, errors.ValidationError("schedule spec is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Scheduler{
		storage:  storage,
		enqueuer: enqueuer,
		spec:     spec,
		cron:     cron.New(),
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, errors.ConfigError("invalid schedule spec: " + err.Error())
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started", logging.String("spec", s.spec))
	s.cron.Start()
}

// Stop halts the cron runner and waits for an in-flight tick.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.Run(ctx)
}

// Run enqueues one scheduled analysis per known user. Exported so an
// operator endpoint can trigger a sweep outside the cron cadence.
func (s *Scheduler) Run(ctx context.Context) {
	records, err := s.storage.LatestPerUser(ctx)
	if err != nil {
		s.logger.Error("Scheduled sweep could not list users", err)
		return
	}

	now := time.Now().UTC()
	enqueued := 0
	for _, rec := range records {
		_, err := s.enqueuer.Enqueue(ctx, dispatch.Request{
			UserID:     rec.UserID,
			SheetID:    rec.SheetID,
			SheetRange: rec.SheetRange,
			Prompt:     defaultPrompt,
			StartDate:  now.AddDate(0, 0, -windowDays).Format("2006-01-02"),
			EndDate:    now.Format("2006-01-02"),
		})
		if err != nil {
			s.logger.Warn("Scheduled analysis could not be enqueued",
				logging.String("user_id", rec.UserID),
				logging.Err(err))
			continue
		}
		enqueued++
	}
	s.logger.Info("Scheduled sweep finished",
		logging.Int("users", len(records)),
		logging.Int("enqueued", enqueued))
}
