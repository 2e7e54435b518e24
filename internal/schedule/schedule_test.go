package schedule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-coach/internal/dispatch"
	"trade-coach/internal/store"
	"trade-coach/internal/testutil"
)

type fakeEnqueuer struct {
	requests []dispatch.Request
	err      error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, req dispatch.Request) (*store.AnalysisRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &store.AnalysisRecord{JobID: fmt.Sprintf("job-%d", len(f.requests))}, nil
}

func seedAnalysis(t *testing.T, storage *testutil.MockStorage, userID, jobID string, requestedAt time.Time) {
	t.Helper()
	require.NoError(t, storage.CreateAnalysis(context.Background(), &store.AnalysisRecord{
		JobID:       jobID,
		UserID:      userID,
		SheetID:     "sheet-" + userID,
		SheetRange:  "Journal!A:Z",
		Status:      store.StatusSucceeded,
		RequestedAt: requestedAt,
	}))
}

func TestRunEnqueuesOnePerUser(t *testing.T) {
	storage := testutil.NewMockStorage()
	now := time.Now().UTC()
	seedAnalysis(t, storage, "alice", "a-old", now.Add(-48*time.Hour))
	seedAnalysis(t, storage, "alice", "a-new", now.Add(-1*time.Hour))
	seedAnalysis(t, storage, "bob", "b-1", now.Add(-24*time.Hour))

	enqueuer := &fakeEnqueuer{}
	scheduler, err := NewScheduler(storage, enqueuer, "0 8 * * 1", nil)
	require.NoError(t, err)

	scheduler.Run(context.Background())

	require.Len(t, enqueuer.requests, 2)
	byUser := make(map[string]dispatch.Request)
	for _, req := range enqueuer.requests {
		byUser[req.UserID] = req
	}

	alice := byUser["alice"]
	assert.Equal(t, "sheet-alice", alice.SheetID)
	assert.Equal(t, "Journal!A:Z", alice.SheetRange)
	assert.Equal(t, defaultPrompt, alice.Prompt)

	start, parseErr := time.Parse("2006-01-02", alice.StartDate)
	require.NoError(t, parseErr)
	end, parseErr := time.Parse("2006-01-02", alice.EndDate)
	require.NoError(t, parseErr)
	assert.Equal(t, float64(windowDays), end.Sub(start).Hours()/24)
}

func TestRunContinuesPastFailures(t *testing.T) {
	storage := testutil.NewMockStorage()
	seedAnalysis(t, storage, "alice", "a-1", time.Now().UTC())

	enqueuer := &fakeEnqueuer{err: fmt.Errorf("queue down")}
	scheduler, err := NewScheduler(storage, enqueuer, "@weekly", nil)
	require.NoError(t, err)

	scheduler.Run(context.Background())
	assert.Empty(t, enqueuer.requests)
}

func TestNewSchedulerValidation(t *testing.T) {
	storage := testutil.NewMockStorage()

	_, err := NewScheduler(storage, &fakeEnqueuer{}, "", nil)
	require.Error(t, err)

	_, err = NewScheduler(storage, &fakeEnqueuer{}, "not a cron spec", nil)
	require.Error(t, err)
}
