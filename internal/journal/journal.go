// Package journal reads a user's trade log from Google Sheets. The first
// row is treated as a header and mapped to canonical field names, so users
// can order and label their columns freely. An unreadable or structurally
// broken sheet is a fatal condition for the requesting job.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trade-coach/internal/common/errors"
)

// DefaultRange covers typical journal layouts when the user does not name a
// range explicitly.
const DefaultRange = "A:Z"

// Trade is one journal row. Numeric columns stay as strings; the analysis
// prompt carries them verbatim and parsing them would only lose the user's
// own formatting.
type Trade struct {
	Date       time.Time
	Symbol     string
	Side       string
	Quantity   string
	EntryPrice string
	ExitPrice  string
	PnL        string
	Notes      string
	// Attachments holds encoded attachment references from the row.
	Attachments []string
	// Extra keeps unrecognized columns so nothing the user logged is lost.
	Extra map[string]string
}

// ValuesFetcher abstracts the Sheets values API for testing.
type ValuesFetcher interface {
	Fetch(ctx context.Context, accessToken, sheetID, readRange string) ([][]interface{}, error)
	Append(ctx context.Context, accessToken, sheetID, readRange string, row []interface{}) error
}

// Client maps sheet rows to trades.
type Client struct {
	fetcher ValuesFetcher
}

func NewClient() *Client {
	return &Client{fetcher: &sheetsFetcher{}}
}

// NewClientWithFetcher is used by tests to substitute the Sheets API.
func NewClientWithFetcher(fetcher ValuesFetcher) *Client {
	return &Client{fetcher: fetcher}
}

// FetchTrades reads the sheet and returns trades inside the inclusive
// [startDate, endDate] window. Empty bounds leave that side open.
func (c *Client) FetchTrades(ctx context.Context, accessToken, sheetID, sheetRange, startDate, endDate string) ([]Trade, error) {
	if sheetRange == "" {
		sheetRange = DefaultRange
	}

	values, err := c.fetcher.Fetch(ctx, accessToken, sheetID, sheetRange)
	if err != nil {
		return nil, errors.SourceUnreadableError("failed to read journal sheet", err)
	}
	if len(values) == 0 {
		return nil, errors.SourceUnreadableError("journal sheet is empty", nil)
	}

	columns, err := mapHeader(values[0])
	if err != nil {
		return nil, err
	}

	start, err := parseBound(startDate)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid start date %q", startDate))
	}
	end, err := parseBound(endDate)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid end date %q", endDate))
	}

	var trades []Trade
	for _, row := range values[1:] {
		trade, ok := mapRow(columns, row)
		if !ok {
			continue
		}
		if !start.IsZero() && trade.Date.Before(start) {
			continue
		}
		if !end.IsZero() && trade.Date.After(end) {
			continue
		}
		trades = append(trades, trade)
	}

	return trades, nil
}

// AppendTrade appends a raw row to the journal sheet.
func (c *Client) AppendTrade(ctx context.Context, accessToken, sheetID, sheetRange string, cells []string) error {
	if len(cells) == 0 {
		return errors.ValidationError("row cannot be empty")
	}
	if sheetRange == "" {
		sheetRange = DefaultRange
	}

	row := make([]interface{}, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}

	if err := c.fetcher.Append(ctx, accessToken, sheetID, sheetRange, row); err != nil {
		return errors.SourceUnreadableError("failed to append to journal sheet", err)
	}
	return nil
}

// column is a canonical field a header cell can map to.
type column int

const (
	colUnknown column = iota
	colDate
	colSymbol
	colSide
	colQuantity
	colEntry
	colExit
	colPnL
	colNotes
	colAttachments
)

// headerAliases maps normalized header cells to canonical columns.
var headerAliases = map[string]column{
	"date": colDate, "tradedate": colDate, "day": colDate,
	"symbol": colSymbol, "ticker": colSymbol, "instrument": colSymbol, "pair": colSymbol,
	"side": colSide, "direction": colSide, "longshort": colSide, "positiontype": colSide,
	"quantity": colQuantity, "qty": colQuantity, "size": colQuantity, "contracts": colQuantity,
	"entry": colEntry, "entryprice": colEntry, "open": colEntry,
	"exit": colExit, "exitprice": colExit, "close": colExit,
	"pnl": colPnL, "profit": colPnL, "pl": colPnL, "result": colPnL,
	"notes": colNotes, "journal": colNotes, "comments": colNotes, "review": colNotes,
	"attachments": colAttachments, "audio": colAttachments, "voicenote": colAttachments,
	"screenshots": colAttachments, "charts": colAttachments, "images": colAttachments,
}

type headerMap struct {
	// byIndex maps a column index to its canonical field.
	byIndex map[int]column
	// names keeps the original header text for Extra columns.
	names map[int]string
}

func normalizeHeader(cell string) string {
	s := strings.ToLower(strings.TrimSpace(cell))
	s = strings.NewReplacer(" ", "", "_", "", "-", "", "&", "", "/", "").Replace(s)
	return s
}

func mapHeader(row []interface{}) (*headerMap, error) {
	columns := &headerMap{
		byIndex: make(map[int]column),
		names:   make(map[int]string),
	}

	hasDate := false
	for i, cell := range row {
		text := fmt.Sprintf("%v", cell)
		col, ok := headerAliases[normalizeHeader(text)]
		if !ok {
			columns.byIndex[i] = colUnknown
			columns.names[i] = strings.TrimSpace(text)
			continue
		}
		columns.byIndex[i] = col
		columns.names[i] = strings.TrimSpace(text)
		if col == colDate {
			hasDate = true
		}
	}

	if !hasDate {
		return nil, errors.SourceUnreadableError("journal sheet has no date column", nil)
	}
	return columns, nil
}

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	time.RFC3339,
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseBound(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, ok := parseDate(value); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

// mapRow converts one sheet row. Rows without a parseable date are skipped;
// a journal full of section headers and blank lines should not kill the job.
func mapRow(columns *headerMap, row []interface{}) (Trade, bool) {
	trade := Trade{Extra: make(map[string]string)}
	dated := false

	for i, cell := range row {
		value := strings.TrimSpace(fmt.Sprintf("%v", cell))
		if value == "" {
			continue
		}

		switch columns.byIndex[i] {
		case colDate:
			if t, ok := parseDate(value); ok {
				trade.Date = t
				dated = true
			}
		case colSymbol:
			trade.Symbol = value
		case colSide:
			trade.Side = value
		case colQuantity:
			trade.Quantity = value
		case colEntry:
			trade.EntryPrice = value
		case colExit:
			trade.ExitPrice = value
		case colPnL:
			trade.PnL = value
		case colNotes:
			trade.Notes = value
		case colAttachments:
			for _, ref := range strings.Split(value, "\n") {
				if ref = strings.TrimSpace(ref); ref != "" {
					trade.Attachments = append(trade.Attachments, ref)
				}
			}
		default:
			trade.Extra[columns.names[i]] = value
		}
	}

	return trade, dated
}
