package store

import "time"

// Status is the lifecycle state of an analysis job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final. A redelivered job in a
// terminal state is acknowledged without reprocessing.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CredentialRecord holds a user's OAuth grant for a provider. Token fields
// are stored encrypted; the vault is the only component that sees plaintext.
type CredentialRecord struct {
	UserID                string
	Provider              string
	AccessTokenEncrypted  string
	RefreshTokenEncrypted string
	ExpiresAt             time.Time
	Scopes                []string
	UpdatedAt             time.Time
}

// AnalysisRecord is the persisted state of one analysis job, from enqueue
// through its terminal status. Insight fields hold what the enrichment steps
// produced; a step that was skipped or failed leaves its field empty.
type AnalysisRecord struct {
	JobID      string
	UserID     string
	SheetID    string
	SheetRange string
	Prompt     string
	StartDate  string
	EndDate    string

	Status        Status
	FailureReason string

	ReportJSON       string
	ReportMarkdown   string
	AudioInsights    []string
	ImageInsights    []string
	ExternalResearch []string

	RequestedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}
