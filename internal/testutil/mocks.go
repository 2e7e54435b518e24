// Package testutil provides in-memory fakes shared across package tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/store"
)

// MockStorage implements store.Storage for testing.
type MockStorage struct {
	mu          sync.RWMutex
	credentials map[string]*store.CredentialRecord
	analyses    map[string]*store.AnalysisRecord

	// ErrorOnMethod injects an error for a named method.
	ErrorOnMethod map[string]error
	// Calls counts invocations by method name.
	Calls map[string]int
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		credentials:   make(map[string]*store.CredentialRecord),
		analyses:      make(map[string]*store.AnalysisRecord),
		ErrorOnMethod: make(map[string]error),
		Calls:         make(map[string]int),
	}
}

func credKey(userID, provider string) string { return userID + "/" + provider }
func jobKey(userID, jobID string) string     { return userID + "/" + jobID }

func (m *MockStorage) fail(method string) error {
	m.Calls[method]++
	return m.ErrorOnMethod[method]
}

func (m *MockStorage) UpsertCredential(ctx context.Context, cred *store.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertCredential"); err != nil {
		return err
	}
	copied := *cred
	copied.UpdatedAt = time.Now()
	m.credentials[credKey(cred.UserID, cred.Provider)] = &copied
	return nil
}

func (m *MockStorage) GetCredential(ctx context.Context, userID, provider string) (*store.CredentialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("GetCredential"); err != nil {
		return nil, err
	}
	cred, ok := m.credentials[credKey(userID, provider)]
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("credential for user %s provider %s", userID, provider))
	}
	copied := *cred
	return &copied, nil
}

func (m *MockStorage) DeleteCredential(ctx context.Context, userID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteCredential"); err != nil {
		return err
	}
	delete(m.credentials, credKey(userID, provider))
	return nil
}

func (m *MockStorage) CreateAnalysis(ctx context.Context, rec *store.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateAnalysis"); err != nil {
		return err
	}
	copied := *rec
	m.analyses[jobKey(rec.UserID, rec.JobID)] = &copied
	return nil
}

func (m *MockStorage) GetAnalysis(ctx context.Context, userID, jobID string) (*store.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("GetAnalysis"); err != nil {
		return nil, err
	}
	rec, ok := m.analyses[jobKey(userID, jobID)]
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("analysis %s", jobID))
	}
	copied := *rec
	return &copied, nil
}

func (m *MockStorage) ListAnalyses(ctx context.Context, userID string, limit int) ([]*store.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("ListAnalyses"); err != nil {
		return nil, err
	}

	var records []*store.AnalysisRecord
	for _, rec := range m.analyses {
		if rec.UserID == userID {
			copied := *rec
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RequestedAt.After(records[j].RequestedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MockStorage) LatestPerUser(ctx context.Context) ([]*store.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("LatestPerUser"); err != nil {
		return nil, err
	}

	latest := make(map[string]*store.AnalysisRecord)
	for _, rec := range m.analyses {
		current, ok := latest[rec.UserID]
		if !ok || rec.RequestedAt.After(current.RequestedAt) {
			copied := *rec
			latest[rec.UserID] = &copied
		}
	}

	var records []*store.AnalysisRecord
	for _, rec := range latest {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UserID < records[j].UserID
	})
	return records, nil
}

func (m *MockStorage) MarkRunning(ctx context.Context, userID, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MarkRunning"); err != nil {
		return err
	}
	rec, ok := m.analyses[jobKey(userID, jobID)]
	if !ok {
		return errors.NotFoundError(fmt.Sprintf("analysis %s", jobID))
	}
	now := time.Now()
	rec.Status = store.StatusRunning
	rec.StartedAt = &now
	return nil
}

func (m *MockStorage) SaveResult(ctx context.Context, update *store.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SaveResult"); err != nil {
		return err
	}
	rec, ok := m.analyses[jobKey(update.UserID, update.JobID)]
	if !ok {
		return errors.NotFoundError(fmt.Sprintf("analysis %s", update.JobID))
	}
	now := time.Now()
	rec.Status = store.StatusSucceeded
	rec.ReportJSON = update.ReportJSON
	rec.ReportMarkdown = update.ReportMarkdown
	rec.AudioInsights = update.AudioInsights
	rec.ImageInsights = update.ImageInsights
	rec.ExternalResearch = update.ExternalResearch
	rec.FailureReason = ""
	rec.CompletedAt = &now
	return nil
}

func (m *MockStorage) MarkFailed(ctx context.Context, userID, jobID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MarkFailed"); err != nil {
		return err
	}
	rec, ok := m.analyses[jobKey(userID, jobID)]
	if !ok {
		return errors.NotFoundError(fmt.Sprintf("analysis %s", jobID))
	}
	now := time.Now()
	rec.Status = store.StatusFailed
	rec.FailureReason = reason
	rec.CompletedAt = &now
	return nil
}

func (m *MockStorage) Health() error { return m.ErrorOnMethod["Health"] }
func (m *MockStorage) Close() error  { return nil }

// Analysis returns the stored record directly, for assertions.
func (m *MockStorage) Analysis(userID, jobID string) *store.AnalysisRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.analyses[jobKey(userID, jobID)]
}
