package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-coach/internal/store"
)

func newTestCache(t *testing.T) *StatusCache {
	t.Helper()

	mr := miniredis.RunT(t)
	cache, err := NewStatusCache(&Config{
		Address: mr.Addr(),
		TTL:     time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache
}

func TestStatusCache_SetGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	rec := &store.AnalysisRecord{
		JobID:   "job-1",
		UserID:  "user-1",
		SheetID: "sheet-abc",
		Status:  store.StatusRunning,
	}
	require.NoError(t, cache.Set(ctx, rec))

	got, err := cache.Get(ctx, "user-1", "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, store.StatusRunning, got.Status)
	assert.Equal(t, "sheet-abc", got.SheetID)
}

func TestStatusCache_MissReturnsNil(t *testing.T) {
	cache := newTestCache(t)

	got, err := cache.Get(context.Background(), "user-1", "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatusCache_Invalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	rec := &store.AnalysisRecord{JobID: "job-1", UserID: "user-1", Status: store.StatusQueued}
	require.NoError(t, cache.Set(ctx, rec))
	require.NoError(t, cache.Invalidate(ctx, "user-1", "job-1"))

	got, err := cache.Get(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatusCache_RequiresAddress(t *testing.T) {
	_, err := NewStatusCache(&Config{})
	assert.Error(t, err)

	_, err = NewStatusCache(nil)
	assert.Error(t, err)
}
