// Package scheduler runs the sync jobs on fixed intervals inside the server
// process, next to the HTTP triggers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appsync "github.com/magesync/backend/internal/application/integration"
)

const cronTrigger = "cron"

// SyncRunner is the part of the sync service the trigger drives
type SyncRunner interface {
	SyncOrderSummaries(ctx context.Context, req appsync.ListingRequest) (*appsync.RunReport, error)
	SyncCustomers(ctx context.Context, req appsync.ListingRequest) (*appsync.RunReport, error)
	SyncOrderDetailsUntilDone(ctx context.Context, req appsync.UntilDoneRequest) (*appsync.RunReport, error)
	SyncShippingAddresses(ctx context.Context, req appsync.AddressRequest) (*appsync.RunReport, error)
	SyncProducts(ctx context.Context, req appsync.ProductsRequest) (*appsync.RunReport, error)
}

// SyncTriggerConfig holds the interval of each job. Zero disables a job.
type SyncTriggerConfig struct {
	// CheckInterval is how often due jobs are looked for
	CheckInterval time.Duration

	OrderSummaries    time.Duration
	Customers         time.Duration
	OrderDetails      time.Duration
	ShippingAddresses time.Duration
	Products          time.Duration
}

// DefaultSyncTriggerConfig returns a configuration with every job disabled
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{CheckInterval: time.Minute}
}

type task struct {
	job      string
	interval time.Duration
	run      func(ctx context.Context) (*appsync.RunReport, error)
	lastRun  time.Time
}

// SyncTrigger starts the configured jobs when their interval has elapsed.
// Due jobs run one after another so they never compete for the session.
type SyncTrigger struct {
	config SyncTriggerConfig
	tasks  []*task
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncTrigger creates a trigger for the jobs with a positive interval
func NewSyncTrigger(config SyncTriggerConfig, runner SyncRunner, logger *zap.Logger) (*SyncTrigger, error) {
	if config.CheckInterval <= 0 {
		return nil, fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}

	all := []*task{
		{job: appsync.JobOrderSummaries, interval: config.OrderSummaries, run: func(ctx context.Context) (*appsync.RunReport, error) {
			return runner.SyncOrderSummaries(ctx, appsync.ListingRequest{Tuning: appsync.Tuning{Trigger: cronTrigger}})
		}},
		{job: appsync.JobCustomers, interval: config.Customers, run: func(ctx context.Context) (*appsync.RunReport, error) {
			return runner.SyncCustomers(ctx, appsync.ListingRequest{Tuning: appsync.Tuning{Trigger: cronTrigger}})
		}},
		{job: appsync.JobOrderDetails, interval: config.OrderDetails, run: func(ctx context.Context) (*appsync.RunReport, error) {
			return runner.SyncOrderDetailsUntilDone(ctx, appsync.UntilDoneRequest{
				DetailsRequest: appsync.DetailsRequest{Tuning: appsync.Tuning{Trigger: cronTrigger}, OnlyMissing: true},
			})
		}},
		{job: appsync.JobShippingAddresses, interval: config.ShippingAddresses, run: func(ctx context.Context) (*appsync.RunReport, error) {
			return runner.SyncShippingAddresses(ctx, appsync.AddressRequest{Tuning: appsync.Tuning{Trigger: cronTrigger}, OnlyMissing: true})
		}},
		{job: appsync.JobProducts, interval: config.Products, run: func(ctx context.Context) (*appsync.RunReport, error) {
			return runner.SyncProducts(ctx, appsync.ProductsRequest{Tuning: appsync.Tuning{Trigger: cronTrigger}})
		}},
	}

	t := &SyncTrigger{config: config, logger: logger, now: time.Now}
	for _, tk := range all {
		if tk.interval > 0 {
			t.tasks = append(t.tasks, tk)
		}
	}
	return t, nil
}

// Jobs returns the names of the scheduled jobs
func (t *SyncTrigger) Jobs() []string {
	jobs := make([]string, 0, len(t.tasks))
	for _, tk := range t.tasks {
		jobs = append(jobs, tk.job)
	}
	return jobs
}

// Start starts the trigger loop. Jobs that never ran are due immediately.
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sync trigger started",
		zap.Strings("jobs", t.Jobs()),
		zap.Duration("check_interval", t.config.CheckInterval),
	)
	return nil
}

// Stop cancels the running job and waits for the loop to exit
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *SyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	t.checkAndTrigger(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs every due job in order. A job that was already
// running stays due and is tried again on the next check.
func (t *SyncTrigger) checkAndTrigger(ctx context.Context) {
	for _, tk := range t.tasks {
		if ctx.Err() != nil {
			return
		}
		now := t.now()
		if !tk.lastRun.IsZero() && now.Sub(tk.lastRun) < tk.interval {
			continue
		}
		if err := t.execute(ctx, tk); !appsync.IsConflict(err) {
			tk.lastRun = now
		}
	}
}

func (t *SyncTrigger) execute(ctx context.Context, tk *task) error {
	report, err := tk.run(ctx)
	switch {
	case appsync.IsConflict(err):
		t.logger.Info("Scheduled job skipped, already running", zap.String("job", tk.job))
	case err != nil:
		t.logger.Error("Scheduled job failed", zap.String("job", tk.job), zap.Error(err))
	case report != nil && report.Result != nil:
		t.logger.Info("Scheduled job finished",
			zap.String("job", tk.job),
			zap.String("run_id", report.RunID.String()),
			zap.String("status", string(report.Result.Status)),
			zap.Int("succeeded", report.Result.Succeeded),
			zap.Int("failed", report.Result.Failed),
			zap.Int("passes", report.Passes),
		)
	}
	return err
}
