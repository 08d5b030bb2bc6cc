package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/trendloop/internal/model"
)

func newTestHistory(t *testing.T) *SQLiteRunHistory {
	t.Helper()
	h, err := NewSQLiteRunHistory(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "data", "run_history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRunHistory_StoreUpdateGet(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	rec := &RunRecord{
		ID:        uuid.New().String(),
		Task:      "content",
		Status:    model.TaskStatusRunning,
		Attempt:   2,
		StartedAt: started,
	}
	require.NoError(t, h.Store(ctx, rec))

	got, err := h.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.TaskStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.True(t, started.Equal(got.StartedAt))

	finished := started.Add(90 * time.Second)
	rec.Status = model.TaskStatusFailed
	rec.Error = "quota exceeded"
	rec.FinishedAt = &finished
	rec.Duration = 90 * time.Second
	require.NoError(t, h.Update(ctx, rec))

	got, err = h.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Equal(t, "quota exceeded", got.Error)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, 90*time.Second, got.Duration)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	missing, err := h.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunHistory_ListCountDelete(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, task := range []string{"seo", "content", "seo", "heartbeat"} {
		require.NoError(t, h.Store(ctx, &RunRecord{
			ID:        uuid.New().String(),
			Task:      task,
			Status:    model.TaskStatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := h.List(ctx, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "heartbeat", all[0].Task)

	seo, err := h.List(ctx, map[string]interface{}{"task": "seo", "status": model.TaskStatusCompleted}, 0, 10)
	require.NoError(t, err)
	assert.Len(t, seo, 2)

	page, err := h.List(ctx, nil, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "seo", page[0].Task)

	n, err := h.Count(ctx, map[string]interface{}{"task": "seo"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = h.Count(ctx, map[string]interface{}{"1=1; DROP TABLE run_history; --": 1})
	assert.Error(t, err)

	deleted, err := h.DeleteBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err = h.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunHistory_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_history.db")
	h, err := NewSQLiteRunHistory(zaptest.NewLogger(t), path)
	require.NoError(t, err)
	require.NoError(t, h.Store(context.Background(), &RunRecord{ID: "1", Task: "seo", Status: model.TaskStatusCompleted, StartedAt: time.Now()}))
	require.NoError(t, h.Close())

	h, err = NewSQLiteRunHistory(zaptest.NewLogger(t), path)
	require.NoError(t, err)
	defer h.Close()
	n, err := h.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
