package errors

import (
	"fmt"
	"strings"
)

// ErrorType classifies an error for propagation decisions. The analysis
// workflow treats authentication_required, source_unreadable and
// synthesis_failed as fatal to a job; attachment_unavailable and
// enrichment_unavailable degrade to an omitted insight.
type ErrorType string

const (
	// ErrTypeAuthRequired means no usable credential exists and the user
	// must re-authenticate. Never retried automatically.
	ErrTypeAuthRequired ErrorType = "authentication_required"
	// ErrTypeAttachmentUnavailable means an attachment fetch failed after
	// exhausting the retry budget.
	ErrTypeAttachmentUnavailable ErrorType = "attachment_unavailable"
	// ErrTypeEnrichmentUnavailable means an enrichment capability is
	// unconfigured or errored.
	ErrTypeEnrichmentUnavailable ErrorType = "enrichment_unavailable"
	// ErrTypeSynthesisFailed means report generation produced an invalid
	// structure twice in a row.
	ErrTypeSynthesisFailed ErrorType = "synthesis_failed"
	// ErrTypeSourceUnreadable means the journal rows could not be read at all.
	ErrTypeSourceUnreadable ErrorType = "source_unreadable"

	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeDecryption represents ciphertext that could not be decrypted,
	// distinct from a record that does not exist
	ErrTypeDecryption ErrorType = "decryption"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// AuthRequiredError creates an authentication_required error
func AuthRequiredError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuthRequired,
		Message: msg,
	}
}

// AttachmentUnavailableError creates an attachment_unavailable error
func AttachmentUnavailableError(reference string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeAttachmentUnavailable,
		Message: fmt.Sprintf("attachment %s could not be retrieved", reference),
		Cause:   cause,
	}
}

// EnrichmentUnavailableError creates an enrichment_unavailable error
func EnrichmentUnavailableError(step string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeEnrichmentUnavailable,
		Message: fmt.Sprintf("enrichment step %s unavailable", step),
		Cause:   cause,
	}
}

// SynthesisFailedError creates a synthesis_failed error
func SynthesisFailedError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeSynthesisFailed,
		Message: msg,
		Cause:   cause,
	}
}

// SourceUnreadableError creates a source_unreadable error
func SourceUnreadableError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeSourceUnreadable,
		Message: msg,
		Cause:   cause,
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// DecryptionError creates a new decryption error
func DecryptionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeDecryption,
		Message: msg,
		Cause:   cause,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsFatal reports whether an error category must fail the whole analysis job.
func IsFatal(err error) bool {
	switch GetType(err) {
	case ErrTypeAuthRequired, ErrTypeSourceUnreadable, ErrTypeSynthesisFailed:
		return true
	}
	return false
}
