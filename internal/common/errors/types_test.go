package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		contains []string
	}{
		{
			name:     "type and message",
			err:      AuthRequiredError("no credential stored"),
			contains: []string{"authentication_required", "no credential stored"},
		},
		{
			name:     "with cause",
			err:      SourceUnreadableError("sheet fetch failed", errors.New("403 forbidden")),
			contains: []string{"source_unreadable", "cause=403 forbidden"},
		},
		{
			name:     "with context",
			err:      SynthesisFailedError("invalid report", nil).WithContext("job_id", "j1"),
			contains: []string{"synthesis_failed", "job_id=j1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want substring %q", msg, want)
				}
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("network down")
	err := AttachmentUnavailableError("file123|image/png|https://x", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is() did not find cause through Unwrap")
	}
}

func TestIsType(t *testing.T) {
	if !IsType(AuthRequiredError("x"), ErrTypeAuthRequired) {
		t.Errorf("IsType() = false for matching type")
	}
	if IsType(AuthRequiredError("x"), ErrTypeSynthesisFailed) {
		t.Errorf("IsType() = true for mismatched type")
	}
	if IsType(errors.New("plain"), ErrTypeInternal) {
		t.Errorf("IsType() = true for non-AppError")
	}
	if IsType(nil, ErrTypeInternal) {
		t.Errorf("IsType() = true for nil error")
	}
}

func TestGetType(t *testing.T) {
	if got := GetType(errors.New("plain")); got != ErrTypeInternal {
		t.Errorf("GetType(plain error) = %v, want %v", got, ErrTypeInternal)
	}
	if got := GetType(nil); got != "" {
		t.Errorf("GetType(nil) = %v, want empty", got)
	}
	if got := GetType(DecryptionError("bad key", nil)); got != ErrTypeDecryption {
		t.Errorf("GetType() = %v, want %v", got, ErrTypeDecryption)
	}
}

func TestIsFatal(t *testing.T) {
	fatal := []error{
		AuthRequiredError("x"),
		SourceUnreadableError("x", nil),
		SynthesisFailedError("x", nil),
	}
	for _, err := range fatal {
		if !IsFatal(err) {
			t.Errorf("IsFatal(%v) = false, want true", GetType(err))
		}
	}

	nonFatal := []error{
		AttachmentUnavailableError("ref", nil),
		EnrichmentUnavailableError("vision", nil),
		errors.New("plain"),
		nil,
	}
	for _, err := range nonFatal {
		if IsFatal(err) {
			t.Errorf("IsFatal(%v) = true, want false", err)
		}
	}
}
