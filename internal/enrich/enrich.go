// Package enrich runs the optional analysis steps that add context to a
// report: audio transcription, chart vision, and external research. Every
// step is self-contained; when one fails its outcome records the loss and
// the pipeline carries on without it.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"trade-coach/internal/attachments"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/genai"
	"trade-coach/internal/research"
)

// Outcome is the result of one enrichment step. Skipped outcomes carry a
// human-readable reason that lands in the report as context the coach knows
// is missing.
type Outcome struct {
	Insights []string
	Skipped  bool
	Reason   string
}

func skipped(reason string) Outcome {
	return Outcome{Insights: []string{}, Skipped: true, Reason: reason}
}

// maxInsightLength bounds each insight so a rambling transcription cannot
// crowd everything else out of the synthesis prompt.
const maxInsightLength = 4000

func truncate(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxInsightLength {
		return text
	}
	return text[:maxInsightLength] + "..."
}

const transcriptionPrompt = "Transcribe this trading journal voice note. " +
	"Keep the trader's own words; note hesitation or emotion where audible. " +
	"Return only the transcription."

// Transcriber turns voice-note attachments into text insights.
type Transcriber struct {
	generator genai.Generator
	logger    logging.Logger
}

func NewTranscriber(generator genai.Generator, logger logging.Logger) *Transcriber {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Transcriber{generator: generator, logger: logger}
}

// Transcribe runs each audio attachment through the model. Attachments that
// fail are dropped individually; the step only reports itself skipped when
// nothing at all came through.
func (t *Transcriber) Transcribe(ctx context.Context, items []*attachments.Attachment) Outcome {
	if t.generator == nil {
		return skipped("transcription model is not configured")
	}

	audio := filterByKind(items, func(ref *attachments.Reference) bool { return ref.IsAudio() })
	if len(audio) == 0 {
		return Outcome{Insights: []string{}}
	}

	insights := make([]string, 0, len(audio))
	var lastErr error
	for _, item := range audio {
		text, err := t.generator.Generate(ctx, []genai.Part{
			genai.TextPart(transcriptionPrompt),
			genai.MediaPart(item.Reference.MimeType, item.Data),
		})
		if err != nil {
			lastErr = err
			t.logger.Warn("Voice note transcription failed",
				logging.String("storage_id", item.Reference.StorageID),
				logging.Err(err))
			continue
		}
		if trimmed := truncate(text); trimmed != "" {
			insights = append(insights, trimmed)
		}
	}

	if len(insights) == 0 && lastErr != nil {
		return skipped(fmt.Sprintf("voice notes could not be transcribed: %v", lastErr))
	}
	return Outcome{Insights: insights}
}

const visionPrompt = "Analyse this trading chart screenshot. Describe the " +
	"setup, entry and exit quality, and anything the trader appears to have " +
	"missed. Be specific and concise."

// VisionAnalyzer extracts observations from chart screenshots.
type VisionAnalyzer struct {
	generator genai.Generator
	logger    logging.Logger
}

func NewVisionAnalyzer(generator genai.Generator, logger logging.Logger) *VisionAnalyzer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &VisionAnalyzer{generator: generator, logger: logger}
}

func (v *VisionAnalyzer) Analyze(ctx context.Context, items []*attachments.Attachment) Outcome {
	if v.generator == nil {
		return skipped("vision model is not configured")
	}

	images := filterByKind(items, func(ref *attachments.Reference) bool { return ref.IsImage() })
	if len(images) == 0 {
		return Outcome{Insights: []string{}}
	}

	insights := make([]string, 0, len(images))
	var lastErr error
	for _, item := range images {
		text, err := v.generator.Generate(ctx, []genai.Part{
			genai.TextPart(visionPrompt),
			genai.MediaPart(item.Reference.MimeType, item.Data),
		})
		if err != nil {
			lastErr = err
			v.logger.Warn("Chart analysis failed",
				logging.String("storage_id", item.Reference.StorageID),
				logging.Err(err))
			continue
		}
		if trimmed := truncate(text); trimmed != "" {
			insights = append(insights, trimmed)
		}
	}

	if len(insights) == 0 && lastErr != nil {
		return skipped(fmt.Sprintf("chart screenshots could not be analysed: %v", lastErr))
	}
	return Outcome{Insights: insights}
}

// maxResearchSymbols caps external lookups per job.
const maxResearchSymbols = 3

// Researcher gathers market context for the symbols a trader touched.
// A nil searcher means the capability is disabled, not broken.
type Researcher struct {
	searcher research.Searcher
	logger   logging.Logger
}

func NewResearcher(searcher research.Searcher, logger logging.Logger) *Researcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Researcher{searcher: searcher, logger: logger}
}

func (r *Researcher) Research(ctx context.Context, symbols []string) Outcome {
	if r.searcher == nil {
		return skipped("external research is disabled")
	}

	unique := dedupeSymbols(symbols)
	if len(unique) == 0 {
		return Outcome{Insights: []string{}}
	}
	if len(unique) > maxResearchSymbols {
		unique = unique[:maxResearchSymbols]
	}

	insights := make([]string, 0, len(unique))
	var lastErr error
	for _, symbol := range unique {
		results, err := r.searcher.Search(ctx, symbol+" market analysis recent")
		if err != nil {
			lastErr = err
			r.logger.Warn("Research lookup failed",
				logging.String("symbol", symbol),
				logging.Err(err))
			continue
		}
		for _, hit := range results {
			insights = append(insights, formatResult(symbol, hit))
		}
	}

	if len(insights) == 0 && lastErr != nil {
		return skipped(fmt.Sprintf("market research could not be gathered: %v", lastErr))
	}
	return Outcome{Insights: insights}
}

func formatResult(symbol string, hit research.Result) string {
	var b strings.Builder
	b.WriteString(symbol)
	b.WriteString(": ")
	b.WriteString(hit.Title)
	if hit.Snippet != "" {
		b.WriteString(" - ")
		b.WriteString(hit.Snippet)
	}
	if hit.Link != "" {
		b.WriteString(" (")
		b.WriteString(hit.Link)
		b.WriteString(")")
	}
	return truncate(b.String())
}

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	unique := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		key := strings.ToUpper(symbol)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, symbol)
	}
	return unique
}

func filterByKind(items []*attachments.Attachment, match func(*attachments.Reference) bool) []*attachments.Attachment {
	filtered := make([]*attachments.Attachment, 0, len(items))
	for _, item := range items {
		if item != nil && item.Reference != nil && match(item.Reference) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
