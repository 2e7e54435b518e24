// Package store defines the persistence interface for credentials and
// analysis records, with SQLite and PostgreSQL adapters behind a factory.
package store

import "context"

// StorageConfig is the configuration contract each adapter accepts.
type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

// GenericConfig is an untyped configuration passed through the registry so
// this package never imports its adapters. Adapters convert it to their own
// Config type.
type GenericConfig map[string]string

func (g GenericConfig) Validate() error            { return nil }
func (g GenericConfig) GetType() string            { return g["type"] }
func (g GenericConfig) GetConnectionString() string { return "" }

// StorageFactory creates an adapter from a config. Adapters register their
// factory in init().
type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}

// Storage is implemented by each database adapter. Missing rows surface as
// not-found typed errors so callers can tell absence from a read failure.
type Storage interface {
	// UpsertCredential inserts or replaces a user's credential for a provider.
	UpsertCredential(ctx context.Context, cred *CredentialRecord) error
	// GetCredential fetches a credential, returning a not-found error when
	// the user never connected the provider.
	GetCredential(ctx context.Context, userID, provider string) (*CredentialRecord, error)
	// DeleteCredential removes a credential when the user disconnects.
	DeleteCredential(ctx context.Context, userID, provider string) error

	// CreateAnalysis persists a new job in the queued state.
	CreateAnalysis(ctx context.Context, rec *AnalysisRecord) error
	// GetAnalysis fetches a job by owner and id.
	GetAnalysis(ctx context.Context, userID, jobID string) (*AnalysisRecord, error)
	// ListAnalyses returns a user's most recent jobs, newest first.
	ListAnalyses(ctx context.Context, userID string, limit int) ([]*AnalysisRecord, error)
	// LatestPerUser returns each user's newest analysis, for scheduled
	// re-runs.
	LatestPerUser(ctx context.Context) ([]*AnalysisRecord, error)

	// MarkRunning transitions a job to running and stamps its start time.
	MarkRunning(ctx context.Context, userID, jobID string) error
	// SaveResult writes the report, all insight fields and the succeeded
	// status in a single statement so readers never see a half-written result.
	SaveResult(ctx context.Context, rec *AnalysisRecord) error
	// MarkFailed transitions a job to failed with a reason.
	MarkFailed(ctx context.Context, userID, jobID, reason string) error

	Health() error
	Close() error
}
