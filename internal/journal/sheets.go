package journal

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	sheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

// sheetsFetcher is the production ValuesFetcher backed by the Sheets API.
// A service is built per call because each call may carry a different
// user's access token.
type sheetsFetcher struct{}

func (f *sheetsFetcher) service(ctx context.Context, accessToken string) (*sheets.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := sheets.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

func (f *sheetsFetcher) Fetch(ctx context.Context, accessToken, sheetID, readRange string) ([][]interface{}, error) {
	svc, err := f.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.Get(sheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (f *sheetsFetcher) Append(ctx context.Context, accessToken, sheetID, readRange string, row []interface{}) error {
	svc, err := f.service(ctx, accessToken)
	if err != nil {
		return err
	}

	body := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err = svc.Spreadsheets.Values.Append(sheetID, readRange, body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	return err
}
