package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/logger"
)

// Settings are the defaults a request falls back to
type Settings struct {
	Options          Options
	Limit            int
	PassSleep        time.Duration
	MaxPasses        int
	UpdatedWindow    time.Duration
	ProductBatchSize int
	StoreView        string
	LockTTL          time.Duration
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		Options:          DefaultOptions(),
		Limit:            200,
		PassSleep:        1500 * time.Millisecond,
		MaxPasses:        10000,
		UpdatedWindow:    24 * time.Hour,
		ProductBatchSize: 25,
		LockTTL:          2 * time.Hour,
	}
}

// Tuning overrides the pass options for one request. Nil fields keep the defaults.
type Tuning struct {
	Trigger     string
	Concurrency *int
	Retries     *int
	Pause       *time.Duration
}

func (t Tuning) apply(o Options) Options {
	if t.Concurrency != nil {
		o.Concurrency = *t.Concurrency
	}
	if t.Retries != nil {
		o.Retries = *t.Retries
	}
	if t.Pause != nil {
		o.Pause = *t.Pause
	}
	return o
}

func (t Tuning) trigger() string {
	if t.Trigger == "" {
		return "api"
	}
	return t.Trigger
}

// ListingRequest selects a remote listing window
type ListingRequest struct {
	Tuning
	// UpdatedSince overrides the default window; a zero time lists everything
	UpdatedSince *time.Time
}

// DetailsRequest selects the order detail backfill
type DetailsRequest struct {
	Tuning
	OnlyMissing bool
	Limit       int
}

// UntilDoneRequest repeats the detail backfill until nothing is left
type UntilDoneRequest struct {
	DetailsRequest
	MaxPasses int
	Sleep     *time.Duration
}

// AddressRequest selects the shipping address backfill
type AddressRequest struct {
	Tuning
	OnlyMissing   bool
	UpdatedBefore *time.Time
	Limit         int
}

// ProductsRequest selects the products job
type ProductsRequest struct {
	Tuning
	StoreView string
	BatchSize int
	Limit     int
}

// RunReport is what every service call returns
type RunReport struct {
	RunID   uuid.UUID
	Job     string
	Passes  int
	Stopped StopReason
	Result  *integration.SyncResult
}

// OrderReport is the outcome of a single order sync
type OrderReport struct {
	RunReport
	Order *integration.StoredOrder
}

// Service runs the sync jobs for the trigger surfaces. Batch jobs hold a
// per-job run lock and every call is recorded in the run history.
type Service struct {
	driver   *Driver
	jobs     *Jobs
	orders   integration.OrderRepository
	runs     integration.SyncRunRepository
	lock     integration.RunLock
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the sync service
func NewService(
	driver *Driver,
	jobs *Jobs,
	orders integration.OrderRepository,
	runs integration.SyncRunRepository,
	lock integration.RunLock,
	settings Settings,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		driver:   driver,
		jobs:     jobs,
		orders:   orders,
		runs:     runs,
		lock:     lock,
		settings: settings,
		logger:   log.Named("sync"),
		now:      time.Now,
	}
}

// Settings returns the configured defaults
func (s *Service) Settings() Settings {
	return s.settings
}

// SyncOrderSummaries upserts the orders listed by the remote since the cutoff
func (s *Service) SyncOrderSummaries(ctx context.Context, req ListingRequest) (*RunReport, error) {
	since := s.since(req.UpdatedSince)
	opts := req.apply(s.settings.Options)
	return s.execute(ctx, JobOrderSummaries, req.trigger(), true, func(ctx context.Context) (*RunReport, error) {
		result, err := Run(ctx, s.driver, s.jobs.OrderSummaries(since), opts)
		return &RunReport{Passes: 1, Result: result}, err
	})
}

// SyncCustomers upserts the customers listed by the remote since the cutoff
func (s *Service) SyncCustomers(ctx context.Context, req ListingRequest) (*RunReport, error) {
	since := s.since(req.UpdatedSince)
	opts := req.apply(s.settings.Options)
	return s.execute(ctx, JobCustomers, req.trigger(), true, func(ctx context.Context) (*RunReport, error) {
		result, err := Run(ctx, s.driver, s.jobs.Customers(since), opts)
		return &RunReport{Passes: 1, Result: result}, err
	})
}

// SyncOrderDetails runs one pass of the order detail backfill
func (s *Service) SyncOrderDetails(ctx context.Context, req DetailsRequest) (*RunReport, error) {
	q := s.orderQuery(req)
	opts := req.apply(s.settings.Options)
	return s.execute(ctx, JobOrderDetails, req.trigger(), true, func(ctx context.Context) (*RunReport, error) {
		result, err := Run(ctx, s.driver, s.jobs.OrderDetails(q), opts)
		return &RunReport{Passes: 1, Result: result}, err
	})
}

// SyncOrderDetailsUntilDone repeats the detail backfill until a pass finds
// nothing, a pass makes no progress, or the pass cap is reached. Without
// OnlyMissing every pass would enumerate the same orders again, so a single
// pass is run.
func (s *Service) SyncOrderDetailsUntilDone(ctx context.Context, req UntilDoneRequest) (*RunReport, error) {
	q := s.orderQuery(req.DetailsRequest)
	opts := req.apply(s.settings.Options)
	until := UntilOptions{
		MaxPasses:        req.MaxPasses,
		Sleep:            s.settings.PassSleep,
		StopOnNoProgress: true,
		ErrorSample:      opts.ErrorSample,
		Wait:             s.driver.sleep,
	}
	if until.MaxPasses <= 0 {
		until.MaxPasses = s.settings.MaxPasses
	}
	if !req.OnlyMissing {
		until.MaxPasses = 1
	}
	if req.Sleep != nil {
		until.Sleep = *req.Sleep
	}

	return s.execute(ctx, JobOrderDetails, req.trigger(), true, func(ctx context.Context) (*RunReport, error) {
		pass := func(ctx context.Context) (*integration.SyncResult, error) {
			return Run(ctx, s.driver, s.jobs.OrderDetails(q), opts)
		}
		report, err := RunUntilExhausted(ctx, JobOrderDetails, pass, until)
		if report == nil {
			return nil, err
		}
		return &RunReport{Passes: report.Calls, Stopped: report.Stopped, Result: report.Totals}, err
	})
}

// SyncOrder fetches one order by increment id and returns the stored copy
func (s *Service) SyncOrder(ctx context.Context, incrementID string, tuning Tuning) (*OrderReport, error) {
	opts := tuning.apply(s.settings.Options)
	target := integration.NewTarget(incrementID)

	report, err := s.execute(ctx, JobSingleOrder, tuning.trigger(), false, func(ctx context.Context) (*RunReport, error) {
		result, err := RunOne(ctx, s.driver, s.jobs.SingleOrder(), target, opts)
		return &RunReport{Passes: 1, Result: result}, err
	})
	if err != nil {
		return &OrderReport{RunReport: derefReport(report)}, err
	}

	out := &OrderReport{RunReport: *report}
	if report.Result.Succeeded == 1 {
		order, err := s.orders.FindByIncrementID(ctx, target.ID)
		if err != nil {
			return out, err
		}
		out.Order = order
	}
	return out, nil
}

// SyncShippingAddresses refreshes shipping addresses under one session
func (s *Service) SyncShippingAddresses(ctx context.Context, req AddressRequest) (*RunReport, error) {
	q := integration.AddressQuery{
		OnlyMissing:   req.OnlyMissing,
		UpdatedBefore: req.UpdatedBefore,
		Limit:         req.Limit,
	}
	opts := req.apply(s.settings.Options)
	return s.execute(ctx, JobShippingAddresses, req.trigger(), true, func(ctx context.Context) (*RunReport, error) {
		result, err := Run(ctx, s.driver, s.jobs.ShippingAddresses(q), opts)
		return &RunReport{Passes: 1, Result: result}, err
	})
}

// SyncProducts fetches the catalog with its stock
func (s *Service) SyncProducts(ctx context.Context, req ProductsRequest) (*RunReport, error) {
	q := ProductQuery{
		StoreView:      firstNonEmpty(req.StoreView, s.settings.StoreView),
		StockBatchSize: req.BatchSize,
		Limit:          req.Limit,
	}
	if q.StockBatchSize <= 0 {
		q.StockBatchSize = s.settings.ProductBatchSize
	}
	opts := req.apply(s.settings.Options)
	return s.execute(ctx, JobProducts, req.trigger(), true, func(ctx context.Context) (*RunReport, error) {
		result, err := Run(ctx, s.driver, s.jobs.Products(q), opts)
		return &RunReport{Passes: 1, Result: result}, err
	})
}

// SyncProductsList upserts the catalog listing without per-product calls
func (s *Service) SyncProductsList(ctx context.Context, req ProductsRequest) (*RunReport, error) {
	q := ProductQuery{
		StoreView: firstNonEmpty(req.StoreView, s.settings.StoreView),
		Limit:     req.Limit,
	}
	opts := req.apply(s.settings.Options)
	return s.execute(ctx, JobProductsList, req.trigger(), true, func(ctx context.Context) (*RunReport, error) {
		result, err := Run(ctx, s.driver, s.jobs.ProductsList(q), opts)
		return &RunReport{Passes: 1, Result: result}, err
	})
}

// SyncProduct fetches one product by id or sku
func (s *Service) SyncProduct(ctx context.Context, identifier string, idType integration.IdentifierType, storeView string, tuning Tuning) (*RunReport, error) {
	if !idType.IsValid() {
		return nil, fmt.Errorf("%w: identifier type %q", integration.ErrInvalidTarget, idType)
	}
	opts := tuning.apply(s.settings.Options)
	job := s.jobs.SingleProduct(firstNonEmpty(storeView, s.settings.StoreView), idType)
	return s.execute(ctx, JobSingleProduct, tuning.trigger(), false, func(ctx context.Context) (*RunReport, error) {
		result, err := RunOne(ctx, s.driver, job, integration.NewTarget(identifier), opts)
		return &RunReport{Passes: 1, Result: result}, err
	})
}

// RecentRuns lists the run history, newest first
func (s *Service) RecentRuns(ctx context.Context, job string, limit int) ([]integration.SyncRun, error) {
	return s.runs.ListRecent(ctx, job, limit)
}

// execute wraps one job invocation: run lock, run id, history row
func (s *Service) execute(ctx context.Context, job, trigger string, exclusive bool, fn func(ctx context.Context) (*RunReport, error)) (*RunReport, error) {
	if exclusive && s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx, job, s.settings.LockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", integration.ErrJobRunning, job)
		}
		defer release()
	}

	runID := uuid.New()
	ctx, log := logger.WithRunID(ctx, s.logger, runID.String())
	started := s.now()
	log.Info("Sync job started", logger.Job(job), zap.String("trigger", trigger))

	report, err := fn(ctx)
	if report == nil {
		report = &RunReport{}
	}
	report.RunID = runID
	report.Job = job
	if report.Result == nil {
		report.Result = integration.NewSyncResult(job, s.settings.Options.ErrorSample, started)
		report.Result.Status = integration.SyncStatusFailed
		report.Result.FinishedAt = s.now()
	}

	run := &integration.SyncRun{
		ID:         runID,
		Job:        job,
		Trigger:    trigger,
		Passes:     report.Passes,
		Result:     *report.Result,
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if err != nil {
		run.Error = err.Error()
	}
	if s.runs != nil {
		if saveErr := s.runs.Save(context.WithoutCancel(ctx), run); saveErr != nil {
			log.Error("Failed to record sync run", zap.Error(saveErr))
		}
	}

	if err != nil {
		log.Error("Sync job failed", logger.Job(job), zap.Error(err))
		return report, err
	}
	log.Info("Sync job finished",
		logger.Job(job),
		zap.String("status", report.Result.Status.String()),
		zap.Int("passes", report.Passes),
		zap.Duration("duration", run.FinishedAt.Sub(started)),
	)
	return report, nil
}

func (s *Service) since(override *time.Time) time.Time {
	if override != nil {
		return *override
	}
	if s.settings.UpdatedWindow <= 0 {
		return time.Time{}
	}
	return s.now().Add(-s.settings.UpdatedWindow)
}

func (s *Service) orderQuery(req DetailsRequest) integration.OrderQuery {
	limit := req.Limit
	if limit <= 0 {
		limit = s.settings.Limit
	}
	return integration.OrderQuery{OnlyMissing: req.OnlyMissing, Limit: limit}
}

// IsConflict reports whether err means the job was already running
func IsConflict(err error) bool {
	return errors.Is(err, integration.ErrJobRunning)
}

func derefReport(r *RunReport) RunReport {
	if r == nil {
		return RunReport{}
	}
	return *r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
