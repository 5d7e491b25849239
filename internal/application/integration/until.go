package integration

import (
	"context"
	"time"

	"github.com/magesync/backend/internal/domain/integration"
)

// PassFunc runs one batch pass
type PassFunc func(ctx context.Context) (*integration.SyncResult, error)

// StopReason tells why RunUntilExhausted returned
type StopReason string

const (
	StopExhausted  StopReason = "exhausted"
	StopMaxPasses  StopReason = "max_passes"
	StopNoProgress StopReason = "no_progress"
	StopError      StopReason = "error"
)

// UntilOptions bounds RunUntilExhausted
type UntilOptions struct {
	// MaxPasses caps the number of pass invocations, empty ones included
	MaxPasses int
	// Sleep is the delay between two passes
	Sleep time.Duration
	// StopOnNoProgress ends the loop after a pass where every target failed,
	// since the next enumeration would return the same targets
	StopOnNoProgress bool
	// ErrorSample bounds the failures kept in the totals
	ErrorSample int
	// Wait replaces SleepContext, mainly for tests
	Wait SleepFunc
}

// ExhaustionReport summarizes a RunUntilExhausted loop
type ExhaustionReport struct {
	// Passes counts the passes that had targets to process
	Passes int
	// Calls counts every pass invocation, including the final empty one
	Calls int
	// Totals merges the results of every pass
	Totals *integration.SyncResult
	// Stopped tells why the loop ended
	Stopped StopReason
}

// RunUntilExhausted invokes pass until it enumerates nothing or MaxPasses
// invocations were made. Passes run strictly one after the other with
// opts.Sleep between them. A pass-level error stops the loop and is returned
// with the report accumulated so far.
func RunUntilExhausted(ctx context.Context, job string, pass PassFunc, opts UntilOptions) (*ExhaustionReport, error) {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = 1
	}
	if opts.ErrorSample <= 0 {
		opts.ErrorSample = DefaultOptions().ErrorSample
	}
	wait := opts.Wait
	if wait == nil {
		wait = SleepContext
	}

	report := &ExhaustionReport{
		Totals:  integration.NewSyncResult(job, opts.ErrorSample, time.Now()),
		Stopped: StopMaxPasses,
	}
	report.Totals.StartedAt = time.Time{}

	finish := func(reason StopReason) {
		report.Stopped = reason
		finished := report.Totals.FinishedAt
		report.Totals.Finish(finished)
	}

	for report.Calls < opts.MaxPasses {
		if report.Calls > 0 {
			if err := wait(ctx, opts.Sleep); err != nil {
				finish(StopError)
				return report, err
			}
		}

		report.Calls++
		result, err := pass(ctx)
		if result != nil {
			report.Totals.Merge(result)
		}
		if err != nil {
			finish(StopError)
			return report, err
		}

		if result.Enumerated == 0 {
			finish(StopExhausted)
			return report, nil
		}
		report.Passes++

		if opts.StopOnNoProgress && result.Succeeded == 0 {
			finish(StopNoProgress)
			return report, nil
		}
	}

	finish(StopMaxPasses)
	return report, nil
}
