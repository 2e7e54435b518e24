package attachments

import (
	"context"
	goerrors "errors"
	"net"

	"google.golang.org/api/googleapi"
	"trade-coach/internal/common/errors"
	"trade-coach/internal/common/logging"
	"trade-coach/internal/common/utils"
)

// Attachment is a resolved reference with its content in memory.
type Attachment struct {
	Reference *Reference
	Data      []byte
}

// Fetcher downloads attachment bytes from storage.
type Fetcher interface {
	Fetch(ctx context.Context, accessToken, storageID string) ([]byte, error)
}

// Resolver downloads attachments with bounded retries. Only transient
// failures retry; a missing or forbidden file will not heal on its own.
type Resolver struct {
	fetcher Fetcher
	retry   utils.RetryConfig
	logger  logging.Logger
}

func NewResolver(fetcher Fetcher, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	config := utils.DefaultRetryConfig()
	config.RetryableErrors = isTransient
	return &Resolver{
		fetcher: fetcher,
		retry:   config,
		logger:  logger,
	}
}

// Resolve parses and downloads one encoded reference. Failures come back as
// attachment-unavailable so the pipeline records the loss and moves on; a
// malformed reference is also unavailable rather than fatal.
func (r *Resolver) Resolve(ctx context.Context, accessToken, raw string) (*Attachment, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return nil, errors.AttachmentUnavailableError(raw, err)
	}

	var data []byte
	err = utils.RetryWithBackoff(ctx, r.retry, func() error {
		var fetchErr error
		data, fetchErr = r.fetcher.Fetch(ctx, accessToken, ref.StorageID)
		return fetchErr
	})
	if err != nil {
		r.logger.Warn("Attachment could not be resolved",
			logging.String("storage_id", ref.StorageID),
			logging.Err(err))
		return nil, errors.AttachmentUnavailableError(ref.StorageID, err)
	}

	if len(data) == 0 {
		return nil, errors.AttachmentUnavailableError(ref.StorageID, nil)
	}

	return &Attachment{Reference: ref, Data: data}, nil
}

// isTransient classifies fetch errors. Server-side trouble and throttling
// retry; client errors like 403 and 404 do not.
func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if goerrors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return netErr.Timeout()
	}
	if errors.IsType(err, errors.ErrTypeConnection) || errors.IsType(err, errors.ErrTypeTimeout) {
		return true
	}
	return false
}
