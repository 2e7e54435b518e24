package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/enrich"
	"trade-coach/internal/genai"
	"trade-coach/internal/journal"
)

// Generator produces JSON model output for a prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, parts []genai.Part) (string, error)
}

// Input carries everything the synthesis prompt is built from.
type Input struct {
	Trades        []journal.Trade
	UserPrompt    string
	AudioInsights enrich.Outcome
	ImageInsights enrich.Outcome
	Research      enrich.Outcome
}

// maxTrades bounds how many rows make it into the prompt. Newest trades
// matter most, so the tail of the window wins.
const maxTrades = 200

const schemaInstruction = `Respond with a single JSON object and nothing else, in exactly this shape:
{
  "performance_overview": {"summary": "...", "key_metrics": ["..."]},
  "behavioural_patterns": ["..."],
  "opportunities": ["..."],
  "action_plan": [{"title": "...", "detail": "..."}]
}
Do not add fields. performance_overview.summary must not be empty.`

// Synthesizer asks the model for a coaching report and enforces the output
// schema. One corrective retry is allowed; a second bad answer fails the
// job.
type Synthesizer struct {
	generator Generator
	logger    logging.Logger
}

func NewSynthesizer(generator Generator, logger logging.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Synthesizer{generator: generator, logger: logger}
}

// Synthesize builds the prompt, calls the model, and validates the reply.
// Transport errors pass through untouched so the caller can retry the whole
// job; schema violations get one corrective round trip and then become a
// synthesis failure.
func (s *Synthesizer) Synthesize(ctx context.Context, input Input) (*Report, error) {
	if len(input.Trades) == 0 {
		return nil, errors.ValidationError("cannot synthesize a report from zero trades")
	}

	prompt := buildPrompt(input)

	raw, err := s.generator.GenerateJSON(ctx, []genai.Part{genai.TextPart(prompt)})
	if err != nil {
		return nil, err
	}

	parsed, parseErr := Parse(raw)
	if parseErr == nil {
		return parsed, nil
	}

	s.logger.Warn("Model reply violated the report schema, retrying once",
		logging.Err(parseErr))

	corrective := prompt + "\n\nYour previous reply was rejected: " + parseErr.Error() +
		"\nReply again with only the JSON object in the required shape."
	raw, err = s.generator.GenerateJSON(ctx, []genai.Part{genai.TextPart(corrective)})
	if err != nil {
		return nil, err
	}

	parsed, parseErr = Parse(raw)
	if parseErr != nil {
		return nil, errors.SynthesisFailedError("model output did not match the report schema after retry", parseErr)
	}
	return parsed, nil
}

func buildPrompt(input Input) string {
	var b strings.Builder

	b.WriteString("You are an experienced trading coach reviewing a trader's journal. ")
	b.WriteString("Write a candid, specific coaching report grounded only in the data below.\n\n")

	if prompt := strings.TrimSpace(input.UserPrompt); prompt != "" {
		b.WriteString("The trader asked: ")
		b.WriteString(prompt)
		b.WriteString("\n\n")
	}

	trades := input.Trades
	if len(trades) > maxTrades {
		trades = trades[len(trades)-maxTrades:]
	}
	fmt.Fprintf(&b, "## Trades (%d)\n", len(trades))
	for _, trade := range trades {
		b.WriteString(formatTrade(trade))
		b.WriteString("\n")
	}

	writeSection(&b, "Voice note transcriptions", input.AudioInsights)
	writeSection(&b, "Chart screenshot observations", input.ImageInsights)
	writeSection(&b, "External market research", input.Research)

	b.WriteString("\n")
	b.WriteString(schemaInstruction)
	return b.String()
}

func formatTrade(trade journal.Trade) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(trade.Date.Format("2006-01-02"))
	appendField(&b, "symbol", trade.Symbol)
	appendField(&b, "side", trade.Side)
	appendField(&b, "qty", trade.Quantity)
	appendField(&b, "entry", trade.EntryPrice)
	appendField(&b, "exit", trade.ExitPrice)
	appendField(&b, "pnl", trade.PnL)
	appendField(&b, "notes", trade.Notes)
	// Extra columns in sorted key order; the same journal must always
	// produce the same prompt text.
	keys := make([]string, 0, len(trade.Extra))
	for key := range trade.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		appendField(&b, key, trade.Extra[key])
	}
	return b.String()
}

func appendField(b *strings.Builder, name, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString("=")
	b.WriteString(value)
}

func writeSection(b *strings.Builder, title string, outcome enrich.Outcome) {
	b.WriteString("\n## ")
	b.WriteString(title)
	b.WriteString("\n")
	if outcome.Skipped {
		b.WriteString("(unavailable: ")
		b.WriteString(outcome.Reason)
		b.WriteString(")\n")
		return
	}
	if len(outcome.Insights) == 0 {
		b.WriteString("(none provided)\n")
		return
	}
	for _, insight := range outcome.Insights {
		b.WriteString("- ")
		b.WriteString(insight)
		b.WriteString("\n")
	}
}
