package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/genai"
)

// ExtractGenerator produces JSON model output for an extraction prompt.
type ExtractGenerator interface {
	GenerateJSON(ctx context.Context, parts []genai.Part) (string, error)
}

// Submission is a free-form trade description. Fields the client already
// knows arrive as overrides and win over whatever the model extracts;
// attachment metadata gives the model context without shipping file bytes.
type Submission struct {
	Content     string
	Overrides   map[string]string
	Attachments []SubmissionAttachment
}

// SubmissionAttachment describes a file that accompanied the submission.
type SubmissionAttachment struct {
	Filename string
	MimeType string
}

// Entry is a structured journal row ready to append to the sheet.
type Entry struct {
	Date       string `json:"date"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Quantity   string `json:"quantity"`
	EntryPrice string `json:"entry_price"`
	ExitPrice  string `json:"exit_price"`
	PnL        string `json:"pnl"`
	Notes      string `json:"notes"`
}

// Row returns the entry as sheet cells in the canonical column order.
func (e *Entry) Row() []string {
	return []string{e.Date, e.Symbol, e.Side, e.Quantity, e.EntryPrice, e.ExitPrice, e.PnL, e.Notes}
}

// missingFields lists required fields still empty after extraction and
// overrides; a row without them is useless to the analysis later.
func (e *Entry) missingFields() []string {
	var missing []string
	if strings.TrimSpace(e.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(e.Symbol) == "" {
		missing = append(missing, "symbol")
	}
	if strings.TrimSpace(e.Side) == "" {
		missing = append(missing, "side")
	}
	if strings.TrimSpace(e.PnL) == "" {
		missing = append(missing, "pnl")
	}
	return missing
}

const extractionInstruction = `You are a trading journal assistant. Read the trader's submission and respond with a single JSON object and nothing else, with exactly these keys:
{"date": "YYYY-MM-DD", "symbol": "...", "side": "...", "quantity": "...", "entry_price": "...", "exit_price": "...", "pnl": "...", "notes": "..."}
Use an empty string for anything the submission does not state. Do not guess values.`

// Extractor turns unstructured trade submissions into structured sheet
// entries via the model.
type Extractor struct {
	generator ExtractGenerator
	logger    logging.Logger
}

func NewExtractor(generator ExtractGenerator, logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Extractor{generator: generator, logger: logger}
}

// Extract asks the model to structure the submission, applies the client's
// overrides on top, and validates that the required fields came out. Missing
// required fields are a validation error the client can act on, not a retry
// candidate.
func (x *Extractor) Extract(ctx context.Context, sub Submission) (*Entry, error) {
	if strings.TrimSpace(sub.Content) == "" {
		return nil, errors.ValidationError("submission content is required")
	}

	raw, err := x.generator.GenerateJSON(ctx, []genai.Part{genai.TextPart(buildExtractionPrompt(sub))})
	if err != nil {
		return nil, err
	}

	entry, err := parseEntry(raw)
	if err != nil {
		return nil, errors.SynthesisFailedError("model output did not match the entry schema", err)
	}
	applyOverrides(entry, sub.Overrides)

	if missing := entry.missingFields(); len(missing) > 0 {
		return nil, errors.ValidationError(
			fmt.Sprintf("could not determine required fields: %s", strings.Join(missing, ", ")))
	}
	if _, ok := parseDate(entry.Date); !ok {
		return nil, errors.ValidationError(fmt.Sprintf("could not determine a valid trade date from %q", entry.Date))
	}

	x.logger.Info("Trade submission structured",
		logging.String("symbol", entry.Symbol),
		logging.String("date", entry.Date))
	return entry, nil
}

func buildExtractionPrompt(sub Submission) string {
	var b strings.Builder
	b.WriteString(extractionInstruction)

	if len(sub.Attachments) > 0 {
		b.WriteString("\n\nAttached files:\n")
		for _, a := range sub.Attachments {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Filename, a.MimeType)
		}
	}

	if len(sub.Overrides) > 0 {
		b.WriteString("\nThe trader already confirmed these values, repeat them verbatim:\n")
		keys := make([]string, 0, len(sub.Overrides))
		for key := range sub.Overrides {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", key, sub.Overrides[key])
		}
	}

	b.WriteString("\nSubmission:\n")
	b.WriteString(sub.Content)
	return b.String()
}

func parseEntry(raw string) (*Entry, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	decoder := json.NewDecoder(strings.NewReader(cleaned))
	decoder.DisallowUnknownFields()

	var entry Entry
	if err := decoder.Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// applyOverrides copies client-supplied fields over the model's extraction.
// Keys go through the same normalization as sheet headers so "Entry Price"
// and "entry_price" land on the same field.
func applyOverrides(entry *Entry, overrides map[string]string) {
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(overrides[key])
		if value == "" {
			continue
		}
		switch headerAliases[normalizeHeader(key)] {
		case colDate:
			entry.Date = value
		case colSymbol:
			entry.Symbol = value
		case colSide:
			entry.Side = value
		case colQuantity:
			entry.Quantity = value
		case colEntry:
			entry.EntryPrice = value
		case colExit:
			entry.ExitPrice = value
		case colPnL:
			entry.PnL = value
		case colNotes:
			entry.Notes = value
		}
	}
}
