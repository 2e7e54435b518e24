// Package attachments resolves encoded attachment references from journal
// rows into raw bytes, retrying transient storage failures and giving up
// cleanly on permanent ones.
package attachments

import (
	"fmt"
	"strings"

	"trade-coach/internal/common/errors"
)

// Reference is a parsed attachment pointer from a journal cell, encoded as
// "storage_id|mime_type|shareable_link".
type Reference struct {
	StorageID     string
	MimeType      string
	ShareableLink string
}

// ParseReference decodes a pipe-delimited attachment reference.
func ParseReference(raw string) (*Reference, error) {
	parts := strings.Split(strings.TrimSpace(raw), "|")
	if len(parts) != 3 {
		return nil, errors.ValidationError(fmt.Sprintf("malformed attachment reference %q: want storage_id|mime_type|link", raw))
	}

	ref := &Reference{
		StorageID:     strings.TrimSpace(parts[0]),
		MimeType:      strings.TrimSpace(parts[1]),
		ShareableLink: strings.TrimSpace(parts[2]),
	}
	if ref.StorageID == "" {
		return nil, errors.ValidationError("attachment reference has empty storage id")
	}
	if ref.MimeType == "" {
		return nil, errors.ValidationError("attachment reference has empty mime type")
	}
	return ref, nil
}

// IsAudio reports whether the attachment is a voice note.
func (r *Reference) IsAudio() bool {
	return strings.HasPrefix(r.MimeType, "audio/")
}

// IsImage reports whether the attachment is a chart screenshot.
func (r *Reference) IsImage() bool {
	return strings.HasPrefix(r.MimeType, "image/")
}

// String re-encodes the reference.
func (r *Reference) String() string {
	return r.StorageID + "|" + r.MimeType + "|" + r.ShareableLink
}
