package enrich

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-coach/internal/attachments"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/genai"
	"trade-coach/internal/research"
)

type fakeGenerator struct {
	calls     int
	responses []string
	err       error
}

func (f *fakeGenerator) Generate(ctx context.Context, parts []genai.Part) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.responses[(f.calls-1)%len(f.responses)], nil
}

type fakeSearcher struct {
	calls   int
	results []research.Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]research.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func audioAttachment(id string) *attachments.Attachment {
	return &attachments.Attachment{
		Reference: &attachments.Reference{StorageID: id, MimeType: "audio/mpeg"},
		Data:      []byte("audio"),
	}
}

func imageAttachment(id string) *attachments.Attachment {
	return &attachments.Attachment{
		Reference: &attachments.Reference{StorageID: id, MimeType: "image/png"},
		Data:      []byte("image"),
	}
}

func TestTranscribeCollectsAudioOnly(t *testing.T) {
	generator := &fakeGenerator{responses: []string{"felt rushed on the entry"}}
	transcriber := NewTranscriber(generator, nil)

	outcome := transcriber.Transcribe(context.Background(), []*attachments.Attachment{
		audioAttachment("a1"),
		imageAttachment("i1"),
	})

	assert.False(t, outcome.Skipped)
	require.Len(t, outcome.Insights, 1)
	assert.Equal(t, "felt rushed on the entry", outcome.Insights[0])
	assert.Equal(t, 1, generator.calls)
}

func TestTranscribeSkipsWhenModelMissing(t *testing.T) {
	transcriber := NewTranscriber(nil, nil)

	outcome := transcriber.Transcribe(context.Background(), []*attachments.Attachment{audioAttachment("a1")})

	assert.True(t, outcome.Skipped)
	assert.NotEmpty(t, outcome.Reason)
	assert.Empty(t, outcome.Insights)
}

func TestTranscribeSkipsWhenAllCallsFail(t *testing.T) {
	generator := &fakeGenerator{err: errors.ConnectionError("gemini", fmt.Errorf("down"))}
	transcriber := NewTranscriber(generator, nil)

	outcome := transcriber.Transcribe(context.Background(), []*attachments.Attachment{audioAttachment("a1")})

	assert.True(t, outcome.Skipped)
	assert.Contains(t, outcome.Reason, "transcribed")
}

func TestTranscribeNoAudio(t *testing.T) {
	generator := &fakeGenerator{responses: []string{"x"}}
	transcriber := NewTranscriber(generator, nil)

	outcome := transcriber.Transcribe(context.Background(), []*attachments.Attachment{imageAttachment("i1")})

	assert.False(t, outcome.Skipped)
	assert.Empty(t, outcome.Insights)
	assert.Equal(t, 0, generator.calls)
}

func TestTranscribeTruncatesLongOutput(t *testing.T) {
	generator := &fakeGenerator{responses: []string{strings.Repeat("a", maxInsightLength+100)}}
	transcriber := NewTranscriber(generator, nil)

	outcome := transcriber.Transcribe(context.Background(), []*attachments.Attachment{audioAttachment("a1")})

	require.Len(t, outcome.Insights, 1)
	assert.Len(t, outcome.Insights[0], maxInsightLength+3)
	assert.True(t, strings.HasSuffix(outcome.Insights[0], "..."))
}

func TestVisionCollectsImagesOnly(t *testing.T) {
	generator := &fakeGenerator{responses: []string{"late entry after the breakout"}}
	analyzer := NewVisionAnalyzer(generator, nil)

	outcome := analyzer.Analyze(context.Background(), []*attachments.Attachment{
		audioAttachment("a1"),
		imageAttachment("i1"),
		imageAttachment("i2"),
	})

	assert.False(t, outcome.Skipped)
	assert.Len(t, outcome.Insights, 2)
	assert.Equal(t, 2, generator.calls)
}

func TestVisionSkipsWhenAllCallsFail(t *testing.T) {
	generator := &fakeGenerator{err: errors.ConnectionError("gemini", fmt.Errorf("down"))}
	analyzer := NewVisionAnalyzer(generator, nil)

	outcome := analyzer.Analyze(context.Background(), []*attachments.Attachment{imageAttachment("i1")})

	assert.True(t, outcome.Skipped)
}

func TestResearchDisabled(t *testing.T) {
	researcher := NewResearcher(nil, nil)

	outcome := researcher.Research(context.Background(), []string{"EURUSD"})

	assert.True(t, outcome.Skipped)
	assert.Equal(t, "external research is disabled", outcome.Reason)
}

func TestResearchDedupesAndCapsSymbols(t *testing.T) {
	searcher := &fakeSearcher{results: []research.Result{{Title: "outlook", Link: "https://example.com"}}}
	researcher := NewResearcher(searcher, nil)

	outcome := researcher.Research(context.Background(), []string{
		"EURUSD", "eurusd", "GBPUSD", "XAUUSD", "BTCUSD",
	})

	assert.False(t, outcome.Skipped)
	assert.Equal(t, maxResearchSymbols, searcher.calls)
	require.NotEmpty(t, outcome.Insights)
	assert.Contains(t, outcome.Insights[0], "EURUSD: outlook")
	assert.Contains(t, outcome.Insights[0], "https://example.com")
}

func TestResearchSkipsWhenSearchFails(t *testing.T) {
	searcher := &fakeSearcher{err: errors.ConnectionError("serpapi", fmt.Errorf("quota"))}
	researcher := NewResearcher(searcher, nil)

	outcome := researcher.Research(context.Background(), []string{"EURUSD"})

	assert.True(t, outcome.Skipped)
	assert.Contains(t, outcome.Reason, "research")
}

func TestResearchNoSymbols(t *testing.T) {
	searcher := &fakeSearcher{results: []research.Result{{Title: "x"}}}
	researcher := NewResearcher(searcher, nil)

	outcome := researcher.Research(context.Background(), []string{"", "  "})

	assert.False(t, outcome.Skipped)
	assert.Empty(t, outcome.Insights)
	assert.Equal(t, 0, searcher.calls)
}
