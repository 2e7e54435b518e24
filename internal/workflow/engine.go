// Package workflow drives one analysis job from queued to a terminal state.
// The engine decides which failures kill the job and which hand it back to
// the queue for redelivery; everything in between degrades gracefully.
package workflow

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"trade-coach/internal/attachments"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/enrich"
	"trade-coach/internal/journal"
	"trade-coach/internal/notify"
	"trade-coach/internal/queue"
	"trade-coach/internal/report"
	"trade-coach/internal/store"
)

// TokenSource hands out a usable access token for a user.
type TokenSource interface {
	GetValidToken(ctx context.Context, userID string) (string, error)
}

// TradeSource reads the journal rows for an analysis window.
type TradeSource interface {
	FetchTrades(ctx context.Context, accessToken, sheetID, sheetRange, startDate, endDate string) ([]journal.Trade, error)
}

// AttachmentResolver downloads one encoded attachment reference.
type AttachmentResolver interface {
	Resolve(ctx context.Context, accessToken, raw string) (*attachments.Attachment, error)
}

// Transcriber, VisionAnalyzer, and Researcher are the enrichment steps.
// Each returns an outcome, never an error; a broken step records itself as
// skipped.
type Transcriber interface {
	Transcribe(ctx context.Context, items []*attachments.Attachment) enrich.Outcome
}

type VisionAnalyzer interface {
	Analyze(ctx context.Context, items []*attachments.Attachment) enrich.Outcome
}

type Researcher interface {
	Research(ctx context.Context, symbols []string) enrich.Outcome
}

// Synthesizer produces the final report from trades and insights.
type Synthesizer interface {
	Synthesize(ctx context.Context, input report.Input) (*report.Report, error)
}

// StatusCache invalidates cached job status after a state change. A nil
// cache is fine; the engine checks before calling.
type StatusCache interface {
	Invalidate(ctx context.Context, userID, jobID string) error
}

// Engine wires the pipeline stages together. Returning nil from Process
// acknowledges the job; returning an error leaves it queued for another
// attempt.
type Engine struct {
	storage          store.Storage
	tokens           TokenSource
	trades           TradeSource
	resolver         AttachmentResolver
	transcriber      Transcriber
	vision           VisionAnalyzer
	researcher       Researcher
	synthesizer      Synthesizer
	cache            StatusCache
	notifier         notify.Notifier
	stepTimeout      time.Duration
	synthesisTimeout time.Duration
	logger           logging.Logger
}

// Options collects the engine's collaborators. Storage, tokens, trades,
// resolver, and synthesizer are required; the rest have working defaults.
type Options struct {
	Storage          store.Storage
	Tokens           TokenSource
	Trades           TradeSource
	Resolver         AttachmentResolver
	Transcriber      Transcriber
	Vision           VisionAnalyzer
	Researcher       Researcher
	Synthesizer      Synthesizer
	Cache            StatusCache
	Notifier         notify.Notifier
	StepTimeout      time.Duration
	SynthesisTimeout time.Duration
	Logger           logging.Logger
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Storage == nil {
		return nil, errors.ValidationError("workflow engine requires storage")
	}
	if opts.Tokens == nil {
		return nil, errors.ValidationError("workflow engine requires a token source")
	}
	if opts.Trades == nil {
		return nil, errors.ValidationError("workflow engine requires a trade source")
	}
	if opts.Resolver == nil {
		return nil, errors.ValidationError("workflow engine requires an attachment resolver")
	}
	if opts.Synthesizer == nil {
		return nil, errors.ValidationError("workflow engine requires a synthesizer")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NopNotifier{}
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 120 * time.Second
	}
	if opts.SynthesisTimeout <= 0 {
		opts.SynthesisTimeout = 180 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	return &Engine{
		storage:          opts.Storage,
		tokens:           opts.Tokens,
		trades:           opts.Trades,
		resolver:         opts.Resolver,
		transcriber:      opts.Transcriber,
		vision:           opts.Vision,
		researcher:       opts.Researcher,
		synthesizer:      opts.Synthesizer,
		cache:            opts.Cache,
		notifier:         opts.Notifier,
		stepTimeout:      opts.StepTimeout,
		synthesisTimeout: opts.SynthesisTimeout,
		logger:           opts.Logger,
	}, nil
}

// Process runs one job to completion. A nil return acknowledges the
// message; an error return leaves it for redelivery, so only failures that
// another attempt could cure may propagate.
func (e *Engine) Process(ctx context.Context, job *queue.Job) error {
	log := e.logger.WithFields(
		logging.String("job_id", job.JobID),
		logging.String("user_id", job.UserID))

	rec, err := e.loadOrCreate(ctx, job)
	if err != nil {
		return err
	}

	// Redeliveries of finished jobs must not rerun the pipeline or touch
	// the stored result.
	if rec.Status.Terminal() {
		log.Info("Job already finished, acknowledging redelivery",
			logging.String("status", string(rec.Status)))
		return nil
	}

	if err := e.storage.MarkRunning(ctx, job.UserID, job.JobID); err != nil {
		return err
	}
	e.invalidate(ctx, job.UserID, job.JobID)
	log.Info("Analysis started")

	// A user without a usable credential cannot be helped by retrying, so
	// the job fails before any external call is made.
	token, err := e.tokens.GetValidToken(ctx, job.UserID)
	if err != nil {
		return e.settle(ctx, job, err, log)
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	trades, err := e.trades.FetchTrades(stepCtx, token, job.SheetID, job.SheetRange, job.StartDate, job.EndDate)
	cancel()
	if err != nil {
		return e.settle(ctx, job, err, log)
	}
	if len(trades) == 0 {
		return e.fail(ctx, job, "no trades found in the requested window", log)
	}
	log.Info("Journal fetched", logging.Int("trades", len(trades)))

	resolved := e.resolveAttachments(ctx, token, trades, log)

	var audio, images, external enrich.Outcome
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		audio = e.runStep(groupCtx, func(c context.Context) enrich.Outcome {
			if e.transcriber == nil {
				return enrich.Outcome{Insights: []string{}, Skipped: true, Reason: "transcription is not configured"}
			}
			return e.transcriber.Transcribe(c, resolved.items)
		})
		audio = resolved.degradeAudio(audio)
		return nil
	})
	group.Go(func() error {
		images = e.runStep(groupCtx, func(c context.Context) enrich.Outcome {
			if e.vision == nil {
				return enrich.Outcome{Insights: []string{}, Skipped: true, Reason: "chart analysis is not configured"}
			}
			return e.vision.Analyze(c, resolved.items)
		})
		images = resolved.degradeImages(images)
		return nil
	})
	group.Go(func() error {
		external = e.runStep(groupCtx, func(c context.Context) enrich.Outcome {
			if e.researcher == nil {
				return enrich.Outcome{Insights: []string{}, Skipped: true, Reason: "external research is disabled"}
			}
			return e.researcher.Research(c, symbolsOf(trades))
		})
		return nil
	})
	// Enrichment goroutines never return errors; Wait only propagates a
	// cancelled parent context.
	if err := group.Wait(); err != nil {
		return err
	}

	synthCtx, cancel := context.WithTimeout(ctx, e.synthesisTimeout)
	result, err := e.synthesizer.Synthesize(synthCtx, report.Input{
		Trades:        trades,
		UserPrompt:    job.Prompt,
		AudioInsights: audio,
		ImageInsights: images,
		Research:      external,
	})
	cancel()
	if err != nil {
		return e.settle(ctx, job, err, log)
	}

	reportJSON, err := result.JSON()
	if err != nil {
		return e.settle(ctx, job, errors.InternalError("failed to encode report", err), log)
	}

	rec.ReportJSON = reportJSON
	rec.ReportMarkdown = result.Markdown()
	rec.AudioInsights = audio.Insights
	rec.ImageInsights = images.Insights
	rec.ExternalResearch = external.Insights
	if err := e.storage.SaveResult(ctx, rec); err != nil {
		return err
	}

	e.finish(ctx, job, log)
	log.Info("Analysis succeeded")
	return nil
}

// loadOrCreate fetches the job's record, creating a queued one when the job
// arrived without an API request ahead of it (scheduled runs).
func (e *Engine) loadOrCreate(ctx context.Context, job *queue.Job) (*store.AnalysisRecord, error) {
	rec, err := e.storage.GetAnalysis(ctx, job.UserID, job.JobID)
	if err == nil {
		return rec, nil
	}
	if !errors.IsType(err, errors.ErrTypeNotFound) {
		return nil, err
	}

	rec = &store.AnalysisRecord{
		JobID:       job.JobID,
		UserID:      job.UserID,
		SheetID:     job.SheetID,
		SheetRange:  job.SheetRange,
		Prompt:      job.Prompt,
		StartDate:   job.StartDate,
		EndDate:     job.EndDate,
		Status:      store.StatusQueued,
		RequestedAt: job.RequestedAt,
	}
	if rec.RequestedAt.IsZero() {
		rec.RequestedAt = time.Now().UTC()
	}
	if err := e.storage.CreateAnalysis(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// settle routes an error to its terminal or retryable fate. Fatal errors
// mark the job failed and acknowledge it; anything else goes back to the
// queue.
func (e *Engine) settle(ctx context.Context, job *queue.Job, err error, log logging.Logger) error {
	if errors.IsFatal(err) || errors.IsType(err, errors.ErrTypeValidation) || errors.IsType(err, errors.ErrTypeConfig) {
		log.Error("Job failed with a terminal error", err)
		return e.fail(ctx, job, terminalReason(err), log)
	}
	log.Warn("Transient failure, leaving job for redelivery", logging.Err(err))
	return err
}

// terminalReason is the failure text persisted on the record and exposed by
// the status API. It carries the error category and message only; cause
// chains stay in the logs.
func terminalReason(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		return fmt.Sprintf("%s: %s", appErr.Type, appErr.Message)
	}
	return string(errors.GetType(err))
}

func (e *Engine) fail(ctx context.Context, job *queue.Job, reason string, log logging.Logger) error {
	if err := e.storage.MarkFailed(ctx, job.UserID, job.JobID, reason); err != nil {
		return err
	}
	e.finish(ctx, job, log)
	log.Warn("Analysis failed", logging.String("reason", reason))
	return nil
}

// finish handles the bookkeeping shared by both terminal states. Cache and
// notification problems are logged, never escalated; the state change
// already committed.
func (e *Engine) finish(ctx context.Context, job *queue.Job, log logging.Logger) {
	e.invalidate(ctx, job.UserID, job.JobID)

	rec, err := e.storage.GetAnalysis(ctx, job.UserID, job.JobID)
	if err != nil {
		log.Warn("Could not load record for notification", logging.Err(err))
		return
	}
	if err := e.notifier.AnalysisFinished(ctx, rec); err != nil {
		log.Warn("Notification failed", logging.Err(err))
	}
}

func (e *Engine) invalidate(ctx context.Context, userID, jobID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, userID, jobID); err != nil {
		e.logger.Warn("Status cache invalidation failed",
			logging.String("job_id", jobID),
			logging.Err(err))
	}
}

func (e *Engine) runStep(ctx context.Context, step func(context.Context) enrich.Outcome) enrich.Outcome {
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()
	return step(stepCtx)
}

// resolvedSet tracks what the resolver delivered against what the journal
// referenced, so a wholesale download failure reads as a skipped step
// instead of a silently empty one.
type resolvedSet struct {
	items       []*attachments.Attachment
	audioRefs   int
	audioLost   int
	imageRefs   int
	imagesLost  int
	lastFailure string
}

func (e *Engine) resolveAttachments(ctx context.Context, token string, trades []journal.Trade, log logging.Logger) *resolvedSet {
	set := &resolvedSet{items: []*attachments.Attachment{}}

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	for _, trade := range trades {
		for _, raw := range trade.Attachments {
			attachment, err := e.resolver.Resolve(stepCtx, token, raw)
			if err != nil {
				set.countLoss(raw, err)
				continue
			}
			set.count(attachment.Reference)
			set.items = append(set.items, attachment)
		}
	}

	if set.audioLost > 0 || set.imagesLost > 0 {
		log.Warn("Some attachments could not be resolved",
			logging.Int("audio_lost", set.audioLost),
			logging.Int("images_lost", set.imagesLost))
	}
	return set
}

func (s *resolvedSet) count(ref *attachments.Reference) {
	if ref.IsAudio() {
		s.audioRefs++
	}
	if ref.IsImage() {
		s.imageRefs++
	}
}

func (s *resolvedSet) countLoss(raw string, err error) {
	s.lastFailure = err.Error()
	ref, parseErr := attachments.ParseReference(raw)
	if parseErr != nil {
		// Kind unknown; charge both so neither step overstates its reach.
		s.audioLost++
		s.imagesLost++
		return
	}
	if ref.IsAudio() {
		s.audioRefs++
		s.audioLost++
	}
	if ref.IsImage() {
		s.imageRefs++
		s.imagesLost++
	}
}

// degradeAudio marks the transcription step skipped when every referenced
// voice note failed to download.
func (s *resolvedSet) degradeAudio(outcome enrich.Outcome) enrich.Outcome {
	if outcome.Skipped || s.audioLost == 0 {
		return outcome
	}
	if s.audioRefs > 0 && s.audioLost >= s.audioRefs {
		return enrich.Outcome{
			Insights: []string{},
			Skipped:  true,
			Reason:   fmt.Sprintf("voice notes could not be downloaded: %s", s.lastFailure),
		}
	}
	return outcome
}

func (s *resolvedSet) degradeImages(outcome enrich.Outcome) enrich.Outcome {
	if outcome.Skipped || s.imagesLost == 0 {
		return outcome
	}
	if s.imageRefs > 0 && s.imagesLost >= s.imageRefs {
		return enrich.Outcome{
			Insights: []string{},
			Skipped:  true,
			Reason:   fmt.Sprintf("chart screenshots could not be downloaded: %s", s.lastFailure),
		}
	}
	return outcome
}

func symbolsOf(trades []journal.Trade) []string {
	symbols := make([]string, 0, len(trades))
	for _, trade := range trades {
		if trade.Symbol != "" {
			symbols = append(symbols, trade.Symbol)
		}
	}
	return symbols
}
