package app

import (
	"context"

	"trade-coach/internal/attachments"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/enrich"
	"trade-coach/internal/genai"
	"trade-coach/internal/journal"
	"trade-coach/internal/notify"
	"trade-coach/internal/report"
	"trade-coach/internal/research"
	"trade-coach/internal/workflow"
)

// buildEngine assembles the analysis pipeline around the shared model
// client; research and notifications are optional.
func (a *App) buildEngine(ctx context.Context, model *genai.GeminiClient) (*workflow.Engine, error) {
	var searcher research.Searcher
	if a.Config.ResearchEnabled() {
		serp, err := research.NewSerpClient(a.Config.SerpAPIKey, nil)
		if err != nil {
			return nil, err
		}
		searcher = serp
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if a.Config.SNSTopicARN != "" {
		snsNotifier, err := notify.NewSNSNotifier(ctx, a.Config.AWSRegion, a.Config.SNSTopicARN, nil)
		if err != nil {
			a.Logger.Warn("SNS unavailable, continuing without notifications",
				logging.Err(err))
		} else {
			notifier = snsNotifier
		}
	}

	var cacheInvalidator workflow.StatusCache
	if a.Cache != nil {
		cacheInvalidator = a.Cache
	}

	return workflow.NewEngine(workflow.Options{
		Storage:          a.Storage,
		Tokens:           a.Vault,
		Trades:           journal.NewClient(),
		Resolver:         attachments.NewResolver(attachments.NewDriveFetcher(), nil),
		Transcriber:      enrich.NewTranscriber(model, nil),
		Vision:           enrich.NewVisionAnalyzer(model, nil),
		Researcher:       enrich.NewResearcher(searcher, nil),
		Synthesizer:      report.NewSynthesizer(model, nil),
		Cache:            cacheInvalidator,
		Notifier:         notifier,
		StepTimeout:      a.Config.StepTimeout,
		SynthesisTimeout: a.Config.SynthesisTimeout,
	})
}
