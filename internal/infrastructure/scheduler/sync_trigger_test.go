package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsync "github.com/magesync/backend/internal/application/integration"
	"github.com/magesync/backend/internal/domain/integration"
)

type recordingRunner struct {
	mu       sync.Mutex
	calls    []string
	triggers []string
	details  []appsync.UntilDoneRequest
	err      error
}

func (r *recordingRunner) record(job, trigger string) (*appsync.RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, job)
	r.triggers = append(r.triggers, trigger)
	if r.err != nil {
		return nil, r.err
	}
	return &appsync.RunReport{
		Job:    job,
		Passes: 1,
		Result: integration.NewSyncResult(job, 5, time.Now()),
	}, nil
}

func (r *recordingRunner) SyncOrderSummaries(_ context.Context, req appsync.ListingRequest) (*appsync.RunReport, error) {
	return r.record(appsync.JobOrderSummaries, req.Trigger)
}

func (r *recordingRunner) SyncCustomers(_ context.Context, req appsync.ListingRequest) (*appsync.RunReport, error) {
	return r.record(appsync.JobCustomers, req.Trigger)
}

func (r *recordingRunner) SyncOrderDetailsUntilDone(_ context.Context, req appsync.UntilDoneRequest) (*appsync.RunReport, error) {
	r.mu.Lock()
	r.details = append(r.details, req)
	r.mu.Unlock()
	return r.record(appsync.JobOrderDetails, req.Trigger)
}

func (r *recordingRunner) SyncShippingAddresses(_ context.Context, req appsync.AddressRequest) (*appsync.RunReport, error) {
	return r.record(appsync.JobShippingAddresses, req.Trigger)
}

func (r *recordingRunner) SyncProducts(_ context.Context, req appsync.ProductsRequest) (*appsync.RunReport, error) {
	return r.record(appsync.JobProducts, req.Trigger)
}

func (r *recordingRunner) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestNewSyncTrigger(t *testing.T) {
	t.Run("rejects a non-positive check interval", func(t *testing.T) {
		_, err := NewSyncTrigger(SyncTriggerConfig{}, &recordingRunner{}, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("keeps only jobs with an interval", func(t *testing.T) {
		cfg := DefaultSyncTriggerConfig()
		cfg.OrderSummaries = 15 * time.Minute
		cfg.ShippingAddresses = time.Hour

		trigger, err := NewSyncTrigger(cfg, &recordingRunner{}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{appsync.JobOrderSummaries, appsync.JobShippingAddresses}, trigger.Jobs())
	})
}

func TestSyncTrigger_CheckAndTrigger(t *testing.T) {
	runner := &recordingRunner{}
	cfg := DefaultSyncTriggerConfig()
	cfg.OrderSummaries = 10 * time.Minute
	cfg.OrderDetails = time.Hour

	trigger, err := NewSyncTrigger(cfg, runner, zap.NewNop())
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	trigger.now = func() time.Time { return clock }
	ctx := context.Background()

	// first check runs everything
	trigger.checkAndTrigger(ctx)
	assert.Equal(t, []string{appsync.JobOrderSummaries, appsync.JobOrderDetails}, runner.snapshot())

	// nothing is due yet
	clock = clock.Add(5 * time.Minute)
	trigger.checkAndTrigger(ctx)
	assert.Len(t, runner.snapshot(), 2)

	// only the short interval is due
	clock = clock.Add(5 * time.Minute)
	trigger.checkAndTrigger(ctx)
	assert.Equal(t, []string{appsync.JobOrderSummaries, appsync.JobOrderDetails, appsync.JobOrderSummaries}, runner.snapshot())

	clock = clock.Add(50 * time.Minute)
	trigger.checkAndTrigger(ctx)
	assert.Len(t, runner.snapshot(), 5)

	for _, tr := range runner.triggers {
		assert.Equal(t, "cron", tr)
	}
	require.NotEmpty(t, runner.details)
	assert.True(t, runner.details[0].OnlyMissing)
}

func TestSyncTrigger_FailureDoesNotBlockOthers(t *testing.T) {
	runner := &recordingRunner{err: fmt.Errorf("%w: busy", integration.ErrJobRunning)}
	cfg := DefaultSyncTriggerConfig()
	cfg.Customers = time.Minute
	cfg.Products = time.Minute

	trigger, err := NewSyncTrigger(cfg, runner, zap.NewNop())
	require.NoError(t, err)

	trigger.checkAndTrigger(context.Background())
	assert.Equal(t, []string{appsync.JobCustomers, appsync.JobProducts}, runner.snapshot())
}

func TestSyncTrigger_ConflictStaysDue(t *testing.T) {
	runner := &recordingRunner{err: fmt.Errorf("%w: busy", integration.ErrJobRunning)}
	cfg := DefaultSyncTriggerConfig()
	cfg.Customers = time.Hour

	trigger, err := NewSyncTrigger(cfg, runner, zap.NewNop())
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	trigger.now = func() time.Time { return clock }
	ctx := context.Background()

	trigger.checkAndTrigger(ctx)
	clock = clock.Add(time.Minute)
	trigger.checkAndTrigger(ctx)
	assert.Len(t, runner.snapshot(), 2, "a job that was already running is retried on the next check")

	// once it runs, the interval applies again
	runner.mu.Lock()
	runner.err = nil
	runner.mu.Unlock()
	clock = clock.Add(time.Minute)
	trigger.checkAndTrigger(ctx)
	clock = clock.Add(time.Minute)
	trigger.checkAndTrigger(ctx)
	assert.Len(t, runner.snapshot(), 3)
}

func TestSyncTrigger_FailedRunWaitsForInterval(t *testing.T) {
	runner := &recordingRunner{err: integration.ErrEnumeration}
	cfg := DefaultSyncTriggerConfig()
	cfg.Products = time.Hour

	trigger, err := NewSyncTrigger(cfg, runner, zap.NewNop())
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	trigger.now = func() time.Time { return clock }

	trigger.checkAndTrigger(context.Background())
	clock = clock.Add(time.Minute)
	trigger.checkAndTrigger(context.Background())
	assert.Len(t, runner.snapshot(), 1)
}

func TestSyncTrigger_CancelledContextStopsCheck(t *testing.T) {
	runner := &recordingRunner{}
	cfg := DefaultSyncTriggerConfig()
	cfg.Customers = time.Minute

	trigger, err := NewSyncTrigger(cfg, runner, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trigger.checkAndTrigger(ctx)
	assert.Empty(t, runner.snapshot())
}

func TestSyncTrigger_StartStop(t *testing.T) {
	runner := &recordingRunner{}
	cfg := SyncTriggerConfig{CheckInterval: 10 * time.Millisecond, Products: time.Hour}

	trigger, err := NewSyncTrigger(cfg, runner, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	// a second start is a no-op
	require.NoError(t, trigger.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return len(runner.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(stopCtx))
	require.NoError(t, trigger.Stop(stopCtx))

	// the hour has not elapsed, so the ticks after the first run were idle
	assert.Equal(t, []string{appsync.JobProducts}, runner.snapshot())
}
