package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-coach/internal/common/errors"
	"trade-coach/internal/store"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()

	adapter, err := NewAdapter(&Config{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	return adapter
}

func TestCredential_RoundTrip(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	cred := &store.CredentialRecord{
		UserID:                "user-1",
		Provider:              "google",
		AccessTokenEncrypted:  "enc-access",
		RefreshTokenEncrypted: "enc-refresh",
		ExpiresAt:             time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Scopes:                []string{"sheets.readonly", "drive.readonly"},
	}

	require.NoError(t, adapter.UpsertCredential(ctx, cred))

	got, err := adapter.GetCredential(ctx, "user-1", "google")
	require.NoError(t, err)
	assert.Equal(t, "enc-access", got.AccessTokenEncrypted)
	assert.Equal(t, "enc-refresh", got.RefreshTokenEncrypted)
	assert.Equal(t, cred.Scopes, got.Scopes)
	assert.WithinDuration(t, cred.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestCredential_UpsertReplaces(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	cred := &store.CredentialRecord{
		UserID:                "user-1",
		Provider:              "google",
		AccessTokenEncrypted:  "old-access",
		RefreshTokenEncrypted: "old-refresh",
		ExpiresAt:             time.Now().UTC(),
	}
	require.NoError(t, adapter.UpsertCredential(ctx, cred))

	cred.AccessTokenEncrypted = "new-access"
	require.NoError(t, adapter.UpsertCredential(ctx, cred))

	got, err := adapter.GetCredential(ctx, "user-1", "google")
	require.NoError(t, err)
	assert.Equal(t, "new-access", got.AccessTokenEncrypted)
}

func TestCredential_NotFound(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.GetCredential(context.Background(), "no-such-user", "google")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestCredential_Delete(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.UpsertCredential(ctx, &store.CredentialRecord{
		UserID:   "user-1",
		Provider: "google",
	}))
	require.NoError(t, adapter.DeleteCredential(ctx, "user-1", "google"))

	_, err := adapter.GetCredential(ctx, "user-1", "google")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func newAnalysis(jobID string, requestedAt time.Time) *store.AnalysisRecord {
	return &store.AnalysisRecord{
		JobID:       jobID,
		UserID:      "user-1",
		SheetID:     "sheet-abc",
		SheetRange:  "Trades!A:H",
		Prompt:      "focus on risk management",
		StartDate:   "2026-08-01",
		EndDate:     "2026-08-31",
		Status:      store.StatusQueued,
		RequestedAt: requestedAt,
	}
}

func TestAnalysis_Lifecycle(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	rec := newAnalysis("job-1", time.Now().UTC())
	require.NoError(t, adapter.CreateAnalysis(ctx, rec))

	got, err := adapter.GetAnalysis(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusQueued, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, adapter.MarkRunning(ctx, "user-1", "job-1"))
	got, err = adapter.GetAnalysis(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)

	rec.ReportJSON = `{"performance_overview":{"summary":"solid month","key_metrics":[]}}`
	rec.ReportMarkdown = "# Trade Review"
	rec.AudioInsights = []string{"hesitation noted before entries"}
	rec.ImageInsights = nil
	rec.ExternalResearch = []string{"FOMC meeting fell inside the window"}
	require.NoError(t, adapter.SaveResult(ctx, rec))

	got, err = adapter.GetAnalysis(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusSucceeded, got.Status)
	assert.Equal(t, rec.ReportJSON, got.ReportJSON)
	assert.Equal(t, []string{"hesitation noted before entries"}, got.AudioInsights)
	assert.Equal(t, []string{}, got.ImageInsights)
	assert.Empty(t, got.FailureReason)
	require.NotNil(t, got.CompletedAt)
}

func TestAnalysis_MarkFailed(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.CreateAnalysis(ctx, newAnalysis("job-1", time.Now().UTC())))
	require.NoError(t, adapter.MarkFailed(ctx, "user-1", "job-1", "authentication_required: no google credential"))

	got, err := adapter.GetAnalysis(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "authentication_required")
	require.NotNil(t, got.CompletedAt)
}

func TestAnalysis_UpdatesOnMissingJob(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	err := adapter.MarkRunning(ctx, "user-1", "no-such-job")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	err = adapter.MarkFailed(ctx, "user-1", "no-such-job", "reason")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	_, err = adapter.GetAnalysis(ctx, "user-1", "no-such-job")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestAnalysis_ListNewestFirst(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, jobID := range []string{"job-a", "job-b", "job-c"} {
		require.NoError(t, adapter.CreateAnalysis(ctx, newAnalysis(jobID, base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := adapter.ListAnalyses(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "job-c", records[0].JobID)
	assert.Equal(t, "job-b", records[1].JobID)
}

func TestAnalysis_LatestPerUser(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, adapter.CreateAnalysis(ctx, newAnalysis("job-old", base)))
	require.NoError(t, adapter.CreateAnalysis(ctx, newAnalysis("job-new", base.Add(30*time.Minute))))

	other := newAnalysis("job-other", base.Add(10*time.Minute))
	other.UserID = "user-2"
	require.NoError(t, adapter.CreateAnalysis(ctx, other))

	records, err := adapter.LatestPerUser(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byUser := make(map[string]string)
	for _, rec := range records {
		byUser[rec.UserID] = rec.JobID
	}
	assert.Equal(t, "job-new", byUser["user-1"])
	assert.Equal(t, "job-other", byUser["user-2"])
}

func TestFactory_RegisteredWithGenericConfig(t *testing.T) {
	storage, err := store.Create("sqlite", store.GenericConfig{
		"type": "sqlite",
		"path": filepath.Join(t.TempDir(), "factory.db"),
	})
	require.NoError(t, err)
	defer storage.Close()

	assert.NoError(t, storage.Health())
}
