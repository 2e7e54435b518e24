package journal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/genai"
)

type fakeExtractGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeExtractGenerator) GenerateJSON(ctx context.Context, parts []genai.Part) (string, error) {
	f.prompts = append(f.prompts, parts[0].Text)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

const extractedReply = `{
	"date": "2026-03-02",
	"symbol": "EURUSD",
	"side": "long",
	"quantity": "1.5",
	"entry_price": "1.0850",
	"exit_price": "1.0820",
	"pnl": "-45",
	"notes": "entered before the level confirmed"
}`

func TestExtractStructuresSubmission(t *testing.T) {
	generator := &fakeExtractGenerator{reply: extractedReply}
	extractor := NewExtractor(generator, nil)

	entry, err := extractor.Extract(context.Background(), Submission{
		Content: "Went long EURUSD at 1.0850, stopped out at 1.0820 for -45. Jumped in too early.",
	})
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", entry.Symbol)
	assert.Equal(t, "long", entry.Side)
	assert.Equal(t, "-45", entry.PnL)

	require.Len(t, generator.prompts, 1)
	assert.Contains(t, generator.prompts[0], "Jumped in too early")

	row := entry.Row()
	require.Len(t, row, 8)
	assert.Equal(t, "2026-03-02", row[0])
	assert.Equal(t, "EURUSD", row[1])
}

func TestExtractOverridesWinOverModelOutput(t *testing.T) {
	generator := &fakeExtractGenerator{reply: extractedReply}
	extractor := NewExtractor(generator, nil)

	entry, err := extractor.Extract(context.Background(), Submission{
		Content: "Long EURUSD, small loss.",
		Overrides: map[string]string{
			"pnl":           "-50",
			"position_type": "short",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "-50", entry.PnL)
	assert.Equal(t, "short", entry.Side)

	assert.Contains(t, generator.prompts[0], "pnl: -50")
	assert.Contains(t, generator.prompts[0], "position_type: short")
}

func TestExtractAttachmentMetadataReachesPrompt(t *testing.T) {
	generator := &fakeExtractGenerator{reply: extractedReply}
	extractor := NewExtractor(generator, nil)

	_, err := extractor.Extract(context.Background(), Submission{
		Content: "Long EURUSD, chart attached.",
		Attachments: []SubmissionAttachment{
			{Filename: "eurusd_setup.png", MimeType: "image/png"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, generator.prompts[0], "eurusd_setup.png (image/png)")
}

func TestExtractMissingRequiredFields(t *testing.T) {
	generator := &fakeExtractGenerator{
		reply: `{"date": "2026-03-02", "symbol": "", "side": "", "quantity": "", "entry_price": "", "exit_price": "", "pnl": "", "notes": "vague"}`,
	}
	extractor := NewExtractor(generator, nil)

	_, err := extractor.Extract(context.Background(), Submission{Content: "made some trades today"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "symbol")
	assert.Contains(t, err.Error(), "pnl")
}

func TestExtractRejectsUnparseableDate(t *testing.T) {
	generator := &fakeExtractGenerator{
		reply: `{"date": "sometime last week", "symbol": "EURUSD", "side": "long", "quantity": "", "entry_price": "", "exit_price": "", "pnl": "-45", "notes": ""}`,
	}
	extractor := NewExtractor(generator, nil)

	_, err := extractor.Extract(context.Background(), Submission{Content: "lost 45 on eurusd"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestExtractMalformedModelOutput(t *testing.T) {
	generator := &fakeExtractGenerator{reply: "I could not find a trade in that message."}
	extractor := NewExtractor(generator, nil)

	_, err := extractor.Extract(context.Background(), Submission{Content: "long eurusd -45"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSynthesisFailed))
}

func TestExtractTransportErrorPassesThrough(t *testing.T) {
	generator := &fakeExtractGenerator{err: errors.ConnectionError("gemini", fmt.Errorf("down"))}
	extractor := NewExtractor(generator, nil)

	_, err := extractor.Extract(context.Background(), Submission{Content: "long eurusd -45"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestExtractRequiresContent(t *testing.T) {
	generator := &fakeExtractGenerator{reply: extractedReply}
	extractor := NewExtractor(generator, nil)

	_, err := extractor.Extract(context.Background(), Submission{Content: "   "})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Empty(t, generator.prompts)
}
