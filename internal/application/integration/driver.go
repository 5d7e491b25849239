package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/logger"
	"github.com/magesync/backend/internal/infrastructure/telemetry"
)

// Options tunes one batch pass
type Options struct {
	// Concurrency is the window size and the number of pipelines in flight
	Concurrency int
	// Retries is how many times a recoverable failure is retried
	Retries int
	// Pause is the delay between two windows
	Pause time.Duration
	// BackoffBase is scaled by attempt² before each retry
	BackoffBase time.Duration
	// ErrorSample bounds the failures kept in the result
	ErrorSample int
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Concurrency: 5,
		Retries:     2,
		Pause:       300 * time.Millisecond,
		BackoffBase: 300 * time.Millisecond,
		ErrorSample: 20,
	}
}

func (o Options) normalized() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Pause < 0 {
		o.Pause = 0
	}
	if o.BackoffBase < 0 {
		o.BackoffBase = 0
	}
	if o.ErrorSample <= 0 {
		o.ErrorSample = DefaultOptions().ErrorSample
	}
	return o
}

// Backoff returns the delay before retrying after the given failed attempt
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt*attempt)
}

// Job describes one entity type to the driver. R is the raw remote shape,
// N the normalized record.
type Job[R, N any] struct {
	Name string
	// Enumerate lists the targets of one pass
	Enumerate func(ctx context.Context, sess integration.Session) ([]integration.Target, error)
	// Prefetch, when set, runs once per window before its pipelines start.
	// A failing prefetch is logged; the window still runs.
	Prefetch func(ctx context.Context, token string, window []integration.Target) error
	// Fetch performs the remote call for one target
	Fetch func(ctx context.Context, token string, target integration.Target) (R, error)
	// Normalize converts the raw record; it must not do I/O
	Normalize func(target integration.Target, raw R) (N, error)
	// Upsert writes the normalized record by its natural key
	Upsert func(ctx context.Context, target integration.Target, record N) (integration.UpsertOutcome, error)
}

// Recorder observes the driver
type Recorder interface {
	TargetFinished(job string, succeeded bool, attempts int, elapsed time.Duration)
	PassFinished(result *integration.SyncResult)
}

type nopRecorder struct{}

func (nopRecorder) TargetFinished(string, bool, int, time.Duration) {}

func (nopRecorder) PassFinished(*integration.SyncResult) {}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Driver runs batch passes: enumerate, split into windows, run each
// window's pipelines concurrently, pause, aggregate.
type Driver struct {
	sessions integration.SessionOpener
	recorder Recorder
	logger   *zap.Logger
	sleep    SleepFunc
	now      func() time.Time
}

// DriverOption configures a Driver
type DriverOption func(*Driver)

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) DriverOption {
	return func(d *Driver) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithSleep replaces the pause and backoff sleeper, mainly for tests
func WithSleep(sleep SleepFunc) DriverOption {
	return func(d *Driver) {
		d.sleep = sleep
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) DriverOption {
	return func(d *Driver) {
		d.now = now
	}
}

// NewDriver creates a driver that opens one session per pass
func NewDriver(sessions integration.SessionOpener, log *zap.Logger, opts ...DriverOption) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Driver{
		sessions: sessions,
		recorder: nopRecorder{},
		logger:   log.Named("driver"),
		sleep:    SleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// targetOutcome is what one pipeline reports back to its window
type targetOutcome struct {
	target   integration.Target
	outcome  integration.UpsertOutcome
	attempts int
	err      error
}

// Run executes one batch pass of job. Only pass-level failures (no session,
// enumeration error) are returned as an error, with a nil result; per-target
// failures are counted in the result.
func Run[R, N any](ctx context.Context, d *Driver, job Job[R, N], opts Options) (*integration.SyncResult, error) {
	opts = opts.normalized()
	log := d.logger.With(logger.Job(job.Name))
	if runID := logger.GetRunID(ctx); runID != "" {
		log = log.With(zap.String("run_id", runID))
	}

	sess, err := d.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}

	enumerated, err := job.Enumerate(ctx, sess)
	if err != nil {
		if errors.Is(err, integration.ErrAuthFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", integration.ErrEnumeration, job.Name, err)
	}

	result := integration.NewSyncResult(job.Name, opts.ErrorSample, d.now())
	result.Enumerated = len(enumerated)
	targets, skipped := dispatchable(enumerated)
	result.Skipped = skipped

	if len(targets) == 0 {
		result.Finish(d.now())
		d.recorder.PassFinished(result)
		log.Info("Nothing to sync", zap.Int("skipped", skipped))
		return result, nil
	}

	// Fail the whole pass up front when no session can be had
	if _, err := sess.Token(ctx); err != nil {
		return nil, err
	}

	log.Info("Batch pass started",
		zap.Int("targets", len(targets)),
		zap.Int("skipped", skipped),
		zap.Int("concurrency", opts.Concurrency),
		zap.Int("retries", opts.Retries),
	)

	var passErr error
	for start := 0; start < len(targets); start += opts.Concurrency {
		if start > 0 {
			if err := d.sleep(ctx, opts.Pause); err != nil {
				passErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			passErr = err
			break
		}

		end := min(start+opts.Concurrency, len(targets))
		for _, o := range runWindow(ctx, d, job, sess, targets[start:end], opts, log) {
			if o.err == nil {
				result.RecordSuccess(o.outcome)
				continue
			}
			result.RecordFailure(integration.SyncFailure{
				TargetID:     o.target.ID,
				ErrorCode:    integration.ErrorCode(o.err),
				ErrorMessage: o.err.Error(),
				Attempts:     o.attempts,
			})
		}
	}

	result.Finish(d.now())
	d.recorder.PassFinished(result)
	log.Info("Batch pass finished",
		zap.String("status", result.Status.String()),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("items", result.Items),
		zap.Duration("duration", result.Duration()),
	)
	if passErr != nil {
		return result, fmt.Errorf("%s pass interrupted after %d of %d targets: %w", job.Name, result.Processed, len(targets), passErr)
	}
	return result, nil
}

// RunOne synchronizes a single target through the same pipeline as Run
func RunOne[R, N any](ctx context.Context, d *Driver, job Job[R, N], target integration.Target, opts Options) (*integration.SyncResult, error) {
	if target.IsZero() {
		return nil, fmt.Errorf("%w: empty identifier", integration.ErrInvalidTarget)
	}
	job.Enumerate = func(context.Context, integration.Session) ([]integration.Target, error) {
		return []integration.Target{target}, nil
	}
	return Run(ctx, d, job, opts)
}

// dispatchable drops targets without an id and repeated ids, keeping order
func dispatchable(targets []integration.Target) ([]integration.Target, int) {
	out := make([]integration.Target, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	skipped := 0
	for _, t := range targets {
		t.ID = integration.NewTarget(t.ID).ID
		if t.IsZero() {
			skipped++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, skipped
}

// runWindow runs every pipeline of a window and waits for all of them.
// Outcomes are returned in window order.
func runWindow[R, N any](ctx context.Context, d *Driver, job Job[R, N], sess integration.Session, window []integration.Target, opts Options, log *zap.Logger) []targetOutcome {
	if job.Prefetch != nil {
		if token, err := sess.Token(ctx); err != nil {
			log.Warn("Skipping window prefetch", zap.Error(err))
		} else if err := job.Prefetch(ctx, token, window); err != nil {
			log.Warn("Window prefetch failed", zap.Int("targets", len(window)), zap.Error(err))
		}
	}

	outcomes := make([]targetOutcome, len(window))
	// A plain group: one failing pipeline must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, target := range window {
		g.Go(func() error {
			outcomes[i] = runTarget(ctx, d, job, sess, target, opts, log)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// runTarget drives fetch, normalize and upsert for one target, retrying
// recoverable failures with a quadratic backoff. An expired session gets one
// immediate attempt with a fresh login that does not count as a retry.
func runTarget[R, N any](ctx context.Context, d *Driver, job Job[R, N], sess integration.Session, target integration.Target, opts Options, log *zap.Logger) targetOutcome {
	started := d.now()
	res := targetOutcome{target: target}
	retries := 0
	relogged := false

	ctx, span := telemetry.StartSpan(ctx, "sync.target",
		telemetry.SpanAttrJob, job.Name,
		telemetry.SpanAttrTarget, target.ID,
	)
	defer span.End()

	for {
		res.attempts++
		token, outcome, err := pipeline(ctx, job, sess, target)
		if err == nil {
			res.outcome, res.err = outcome, nil
			break
		}
		res.err = err

		if integration.IsSessionExpired(err) && token != "" {
			sess.Invalidate(ctx, token)
			if !relogged {
				relogged = true
				log.Debug("Session expired, logging in again", logger.Target(target.ID))
				continue
			}
		}
		if !integration.IsRecoverable(err) || retries >= opts.Retries {
			break
		}
		retries++

		delay := Backoff(opts.BackoffBase, retries)
		log.Debug("Retrying target",
			logger.Target(target.ID),
			logger.Attempt(res.attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := d.sleep(ctx, delay); err != nil {
			res.err = err
			break
		}
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrAttempts, res.attempts)
	if res.err != nil {
		code := integration.ErrorCode(res.err)
		telemetry.SetAttributes(span,
			telemetry.SpanAttrOutcome, "failed",
			telemetry.SpanAttrError, code,
		)
		telemetry.RecordError(span, res.err)
		log.Warn("Target failed",
			logger.Target(target.ID),
			zap.Int("attempts", res.attempts),
			zap.String("code", code),
			zap.Error(res.err),
		)
	} else {
		telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, "succeeded")
	}
	d.recorder.TargetFinished(job.Name, res.err == nil, res.attempts, d.now().Sub(started))
	return res
}

// pipeline is one attempt. It returns the token it used so a session
// fault can invalidate exactly that token.
func pipeline[R, N any](ctx context.Context, job Job[R, N], sess integration.Session, target integration.Target) (string, integration.UpsertOutcome, error) {
	token, err := sess.Token(ctx)
	if err != nil {
		return "", integration.UpsertOutcome{}, err
	}

	raw, err := job.Fetch(ctx, token, target)
	if err != nil {
		return token, integration.UpsertOutcome{}, err
	}

	record, err := job.Normalize(target, raw)
	if err != nil {
		if !errors.Is(err, integration.ErrRemoteParse) {
			err = fmt.Errorf("%w: %w", integration.ErrRemoteParse, err)
		}
		return token, integration.UpsertOutcome{}, err
	}

	outcome, err := job.Upsert(ctx, target, record)
	if err != nil {
		if !errors.Is(err, integration.ErrPersistence) {
			err = fmt.Errorf("%w: %w", integration.ErrPersistence, err)
		}
		return token, integration.UpsertOutcome{}, err
	}
	return token, outcome, nil
}
