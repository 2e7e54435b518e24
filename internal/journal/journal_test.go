package journal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-coach/internal/common/errors"
)

type fakeFetcher struct {
	values   [][]interface{}
	err      error
	appended [][]interface{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, accessToken, sheetID, readRange string) ([][]interface{}, error) {
	return f.values, f.err
}

func (f *fakeFetcher) Append(ctx context.Context, accessToken, sheetID, readRange string, row []interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, row)
	return nil
}

func row(cells ...string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func TestFetchTrades_HeaderMapping(t *testing.T) {
	fetcher := &fakeFetcher{values: [][]interface{}{
		row("Trade Date", "Ticker", "Direction", "Qty", "Entry Price", "Exit Price", "P&L", "Notes", "Screenshots"),
		row("2026-08-03", "ES", "long", "2", "5610.25", "5618.50", "+330", "clean breakout", "f1|image/png|https://drive.google.com/f1"),
	}}
	client := NewClientWithFetcher(fetcher)

	trades, err := client.FetchTrades(context.Background(), "token", "sheet-1", "", "", "")
	require.NoError(t, err)
	require.Len(t, trades, 1)

	trade := trades[0]
	assert.Equal(t, "ES", trade.Symbol)
	assert.Equal(t, "long", trade.Side)
	assert.Equal(t, "2", trade.Quantity)
	assert.Equal(t, "5610.25", trade.EntryPrice)
	assert.Equal(t, "5618.50", trade.ExitPrice)
	assert.Equal(t, "+330", trade.PnL)
	assert.Equal(t, "clean breakout", trade.Notes)
	assert.Equal(t, []string{"f1|image/png|https://drive.google.com/f1"}, trade.Attachments)
	assert.Equal(t, "2026-08-03", trade.Date.Format("2006-01-02"))
}

func TestFetchTrades_DateWindow(t *testing.T) {
	fetcher := &fakeFetcher{values: [][]interface{}{
		row("date", "symbol"),
		row("2026-07-30", "AAPL"),
		row("2026-08-01", "MSFT"),
		row("2026-08-15", "NVDA"),
		row("2026-09-01", "TSLA"),
	}}
	client := NewClientWithFetcher(fetcher)

	trades, err := client.FetchTrades(context.Background(), "token", "sheet-1", "", "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "MSFT", trades[0].Symbol)
	assert.Equal(t, "NVDA", trades[1].Symbol)
}

func TestFetchTrades_OpenEndedWindow(t *testing.T) {
	fetcher := &fakeFetcher{values: [][]interface{}{
		row("date", "symbol"),
		row("2026-07-30", "AAPL"),
		row("2026-08-15", "NVDA"),
	}}
	client := NewClientWithFetcher(fetcher)

	trades, err := client.FetchTrades(context.Background(), "token", "sheet-1", "", "", "")
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestFetchTrades_SkipsUndatedRows(t *testing.T) {
	fetcher := &fakeFetcher{values: [][]interface{}{
		row("date", "symbol", "notes"),
		row("", "", "weekly review section"),
		row("not a date", "AAPL", ""),
		row("2026-08-15", "NVDA", "held too long"),
	}}
	client := NewClientWithFetcher(fetcher)

	trades, err := client.FetchTrades(context.Background(), "token", "sheet-1", "", "", "")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "NVDA", trades[0].Symbol)
}

func TestFetchTrades_ExtraColumnsPreserved(t *testing.T) {
	fetcher := &fakeFetcher{values: [][]interface{}{
		row("date", "symbol", "Setup Grade"),
		row("2026-08-15", "NVDA", "A+"),
	}}
	client := NewClientWithFetcher(fetcher)

	trades, err := client.FetchTrades(context.Background(), "token", "sheet-1", "", "", "")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "A+", trades[0].Extra["Setup Grade"])
}

func TestFetchTrades_MultipleAttachmentsPerCell(t *testing.T) {
	fetcher := &fakeFetcher{values: [][]interface{}{
		row("date", "attachments"),
		row("2026-08-15", "f1|image/png|https://drive/f1\nf2|audio/mpeg|https://drive/f2"),
	}}
	client := NewClientWithFetcher(fetcher)

	trades, err := client.FetchTrades(context.Background(), "token", "sheet-1", "", "", "")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Len(t, trades[0].Attachments, 2)
}

func TestFetchTrades_UnreadableSource(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
	}{
		{"api error", &fakeFetcher{err: fmt.Errorf("googleapi: Error 403")}},
		{"empty sheet", &fakeFetcher{values: nil}},
		{"no date column", &fakeFetcher{values: [][]interface{}{row("symbol", "pnl")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClientWithFetcher(tt.fetcher)
			_, err := client.FetchTrades(context.Background(), "token", "sheet-1", "", "", "")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeSourceUnreadable))
		})
	}
}

func TestFetchTrades_InvalidBounds(t *testing.T) {
	client := NewClientWithFetcher(&fakeFetcher{values: [][]interface{}{row("date")}})

	_, err := client.FetchTrades(context.Background(), "token", "sheet-1", "", "yesterday", "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestAppendTrade(t *testing.T) {
	fetcher := &fakeFetcher{}
	client := NewClientWithFetcher(fetcher)

	err := client.AppendTrade(context.Background(), "token", "sheet-1", "", []string{"2026-08-20", "ES", "long"})
	require.NoError(t, err)
	require.Len(t, fetcher.appended, 1)

	err = client.AppendTrade(context.Background(), "token", "sheet-1", "", nil)
	assert.Error(t, err)
}
