package attachments

import (
	"context"
	"io"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"trade-coach/internal/common/errors"
)

// DriveFetcher downloads attachment media from Google Drive. A service is
// built per call so each request carries the caller's current access token.
type DriveFetcher struct{}

func NewDriveFetcher() *DriveFetcher {
	return &DriveFetcher{}
}

func (f *DriveFetcher) Fetch(ctx context.Context, accessToken, storageID string) ([]byte, error) {
	service, err := drive.NewService(ctx, option.WithTokenSource(
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})))
	if err != nil {
		return nil, errors.ConnectionError("drive", err)
	}

	resp, err := service.Files.Get(storageID).Context(ctx).Download()
	if err != nil {
		// Raw googleapi errors pass through so the caller can tell
		// throttling apart from a deleted file.
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectionError("drive", err)
	}
	return data, nil
}
