package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magesync/backend/internal/domain/integration"
)

// backlog simulates a remote that lists at most page ids of what is left
type backlog struct {
	remaining int
	page      int
	calls     int
}

func (b *backlog) pass(context.Context) (*integration.SyncResult, error) {
	b.calls++
	n := min(b.remaining, b.page)
	b.remaining -= n

	r := integration.NewSyncResult("order-details", 20, time.Now())
	r.Enumerated = n
	for range n {
		r.RecordSuccess(integration.UpsertOutcome{Created: true})
	}
	r.Finish(time.Now())
	return r, nil
}

func TestRunUntilExhausted_DrainsBacklog(t *testing.T) {
	b := &backlog{remaining: 250, page: 200}
	sleep := &recordingSleep{}

	report, err := RunUntilExhausted(context.Background(), "order-details", b.pass, UntilOptions{
		MaxPasses: 10,
		Sleep:     1500 * time.Millisecond,
		Wait:      sleep.Sleep,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Passes, "200 then 50")
	assert.Equal(t, 3, report.Calls, "the third call lists nothing")
	assert.Equal(t, StopExhausted, report.Stopped)
	assert.Equal(t, 250, report.Totals.Succeeded)
	assert.Equal(t, 250, report.Totals.Created)
	assert.Equal(t, integration.SyncStatusSuccess, report.Totals.Status)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, sleep.delays)
}

func TestRunUntilExhausted_StopsAtMaxPasses(t *testing.T) {
	b := &backlog{remaining: 1000, page: 200}

	report, err := RunUntilExhausted(context.Background(), "order-details", b.pass, UntilOptions{
		MaxPasses: 2,
		Wait:      (&recordingSleep{}).Sleep,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, b.calls)
	assert.Equal(t, 2, report.Passes)
	assert.Equal(t, StopMaxPasses, report.Stopped)
	assert.Equal(t, 400, report.Totals.Succeeded)
}

func TestRunUntilExhausted_StopsWithoutProgress(t *testing.T) {
	calls := 0
	failing := func(context.Context) (*integration.SyncResult, error) {
		calls++
		r := integration.NewSyncResult("order-details", 20, time.Now())
		r.Enumerated = 3
		for _, id := range []string{"1", "2", "3"} {
			r.RecordFailure(integration.SyncFailure{TargetID: id, ErrorCode: "REMOTE_HTTP", Attempts: 3})
		}
		r.Finish(time.Now())
		return r, nil
	}

	report, err := RunUntilExhausted(context.Background(), "order-details", failing, UntilOptions{
		MaxPasses:        10,
		StopOnNoProgress: true,
		Wait:             (&recordingSleep{}).Sleep,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, StopNoProgress, report.Stopped)
	assert.Equal(t, 3, report.Totals.Failed)
	assert.Equal(t, integration.SyncStatusFailed, report.Totals.Status)
}

func TestRunUntilExhausted_StopsOnPassError(t *testing.T) {
	b := &backlog{remaining: 1000, page: 100}
	calls := 0
	pass := func(ctx context.Context) (*integration.SyncResult, error) {
		calls++
		if calls == 2 {
			return nil, integration.ErrAuthFailed
		}
		return b.pass(ctx)
	}

	report, err := RunUntilExhausted(context.Background(), "order-details", pass, UntilOptions{
		MaxPasses: 10,
		Wait:      (&recordingSleep{}).Sleep,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, integration.ErrAuthFailed))
	require.NotNil(t, report)
	assert.Equal(t, StopError, report.Stopped)
	assert.Equal(t, 1, report.Passes)
	assert.Equal(t, 2, report.Calls)
	assert.Equal(t, 100, report.Totals.Succeeded)
}

func TestRunUntilExhausted_StopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &backlog{remaining: 1000, page: 100}
	pass := func(ctx context.Context) (*integration.SyncResult, error) {
		defer cancel()
		return b.pass(ctx)
	}

	report, err := RunUntilExhausted(ctx, "order-details", pass, UntilOptions{
		MaxPasses: 10,
		Wait:      (&recordingSleep{}).Sleep,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Calls)
	assert.Equal(t, StopError, report.Stopped)
}

func TestRunUntilExhausted_WithDriver(t *testing.T) {
	store := newMemoryStore()
	targets := idsOf(5)
	d := newTestDriver(&fakeSession{}, &recordingSleep{})

	// enumerate only what the store does not hold yet, two at a time
	job := testJob(nil, newFetchScript(), store)
	job.Enumerate = func(context.Context, integration.Session) ([]integration.Target, error) {
		var missing []integration.Target
		for _, tg := range targets {
			if _, ok := store.rows[tg.ID]; !ok && len(missing) < 2 {
				missing = append(missing, tg)
			}
		}
		return missing, nil
	}

	report, err := RunUntilExhausted(context.Background(), job.Name, func(ctx context.Context) (*integration.SyncResult, error) {
		return Run(ctx, d, job, testOptions(2, 0))
	}, UntilOptions{MaxPasses: 10, Wait: (&recordingSleep{}).Sleep})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Passes)
	assert.Equal(t, 4, report.Calls)
	assert.Equal(t, 5, report.Totals.Succeeded)
	assert.Len(t, store.keys(), 5)
}
