package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magesync/backend/internal/domain/integration"
)

func TestGormSyncRunRepository(t *testing.T) {
	repo := NewGormSyncRunRepository(setupSyncTestDB(t))
	ctx := context.Background()
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	result := integration.NewSyncResult("order-details", 5, started)
	result.Enumerated = 3
	result.RecordSuccess(integration.UpsertOutcome{Created: true, Items: 2})
	result.RecordSuccess(integration.UpsertOutcome{Items: 1})
	result.RecordFailure(integration.SyncFailure{
		TargetID:     "100000003",
		ErrorCode:    "REMOTE_HTTP",
		ErrorMessage: "remote http error: status 503",
		Attempts:     3,
	})
	result.Finish(started.Add(2 * time.Second))

	first := &integration.SyncRun{
		Job:        "order-details",
		Trigger:    "api",
		Passes:     1,
		Result:     *result,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
	require.NoError(t, repo.Save(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	second := &integration.SyncRun{
		Job:        "customers",
		Trigger:    "cli",
		Passes:     1,
		Result:     *integration.NewSyncResult("customers", 5, started),
		StartedAt:  started.Add(time.Minute),
		FinishedAt: started.Add(time.Minute),
	}
	require.NoError(t, repo.Save(ctx, second))

	t.Run("newest first across jobs", func(t *testing.T) {
		runs, err := repo.ListRecent(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "customers", runs[0].Job)
		assert.Equal(t, "order-details", runs[1].Job)
	})

	t.Run("filters by job and restores the result", func(t *testing.T) {
		runs, err := repo.ListRecent(ctx, "order-details", 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)

		run := runs[0]
		assert.Equal(t, first.ID, run.ID)
		assert.Equal(t, integration.SyncStatusPartial, run.Result.Status)
		assert.Equal(t, 3, run.Result.Enumerated)
		assert.Equal(t, 2, run.Result.Succeeded)
		assert.Equal(t, 1, run.Result.Failed)
		assert.Equal(t, 1, run.Result.Created)
		assert.Equal(t, 1, run.Result.Updated)
		assert.Equal(t, 3, run.Result.Items)
		require.Len(t, run.Result.Failures, 1)
		assert.Equal(t, "REMOTE_HTTP", run.Result.Failures[0].ErrorCode)
		assert.Equal(t, 3, run.Result.Failures[0].Attempts)
	})
}
