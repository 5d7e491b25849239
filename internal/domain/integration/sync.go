package integration

import (
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Targets and outcomes
// ---------------------------------------------------------------------------

// Target is one external identifier a job has to synchronize
type Target struct {
	// ID is the natural key on the remote side (increment id, customer id, sku...)
	ID string
	// Label is an optional human readable hint used in logs
	Label string
}

// NewTarget creates a target with a trimmed id
func NewTarget(id string) Target {
	return Target{ID: strings.TrimSpace(id)}
}

// IsZero reports whether the target has no resolvable id
func (t Target) IsZero() bool {
	return strings.TrimSpace(t.ID) == ""
}

// TargetsOf converts plain ids into targets
func TargetsOf(ids ...string) []Target {
	targets := make([]Target, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, NewTarget(id))
	}
	return targets
}

// UpsertOutcome is what a repository reports after writing one target
type UpsertOutcome struct {
	// Created is true when the natural key did not exist before
	Created bool
	// Items counts child rows written (order items, orders sharing an address)
	Items int
}

// ---------------------------------------------------------------------------
// SyncResult aggregates one batch pass
// ---------------------------------------------------------------------------

// SyncFailure represents a target that failed after its retry budget
type SyncFailure struct {
	// TargetID is the external identifier of the failed target
	TargetID string `json:"target_id"`
	// ErrorCode is the stable classification from ErrorCode
	ErrorCode string `json:"error_code"`
	// ErrorMessage is the error description
	ErrorMessage string `json:"error_message"`
	// Attempts is how many times the pipeline ran for the target
	Attempts int `json:"attempts"`
}

// SyncResult represents the result of one batch pass
type SyncResult struct {
	// Job is the name of the job that produced the result
	Job string
	// Status is the overall pass status
	Status SyncStatus
	// Enumerated is the number of targets the enumeration returned
	Enumerated int
	// Processed is the number of targets dispatched
	Processed int
	// Succeeded is the number of targets persisted
	Succeeded int
	// Failed is the number of targets that exhausted their retries
	Failed int
	// Skipped counts targets without a resolvable id
	Skipped int
	// Created counts targets whose natural key was new
	Created int
	// Updated counts targets that already existed
	Updated int
	// Items counts child rows written across all targets
	Items int
	// Failures is a bounded sample of the failures
	Failures []SyncFailure
	// FailuresTotal is the number of failures including those not sampled
	FailuresTotal int
	// StartedAt is when the pass started
	StartedAt time.Time
	// FinishedAt is when the pass finished
	FinishedAt time.Time

	sampleSize int
}

// NewSyncResult creates an empty result that keeps at most sampleSize failures
func NewSyncResult(job string, sampleSize int, now time.Time) *SyncResult {
	return &SyncResult{
		Job:        job,
		Status:     SyncStatusSuccess,
		Failures:   []SyncFailure{},
		StartedAt:  now,
		sampleSize: sampleSize,
	}
}

// RecordSuccess accounts for a persisted target
func (r *SyncResult) RecordSuccess(outcome UpsertOutcome) {
	r.Processed++
	r.Succeeded++
	if outcome.Created {
		r.Created++
	} else {
		r.Updated++
	}
	r.Items += outcome.Items
}

// RecordFailure accounts for a failed target and samples its error
func (r *SyncResult) RecordFailure(f SyncFailure) {
	r.Processed++
	r.Failed++
	r.FailuresTotal++
	if len(r.Failures) < r.sampleSize {
		r.Failures = append(r.Failures, f)
	}
}

// Finish stamps the end time and derives the status
func (r *SyncResult) Finish(now time.Time) {
	r.FinishedAt = now
	switch {
	case r.Failed == 0:
		r.Status = SyncStatusSuccess
	case r.Succeeded == 0:
		r.Status = SyncStatusFailed
	default:
		r.Status = SyncStatusPartial
	}
}

// Duration returns how long the pass took
func (r *SyncResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Merge adds the counters of other into r. Used to total several passes.
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.Enumerated += other.Enumerated
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	r.Created += other.Created
	r.Updated += other.Updated
	r.Items += other.Items
	r.FailuresTotal += other.FailuresTotal
	for _, f := range other.Failures {
		if len(r.Failures) >= r.sampleSize {
			break
		}
		r.Failures = append(r.Failures, f)
	}
	if r.StartedAt.IsZero() || (!other.StartedAt.IsZero() && other.StartedAt.Before(r.StartedAt)) {
		r.StartedAt = other.StartedAt
	}
	if other.FinishedAt.After(r.FinishedAt) {
		r.FinishedAt = other.FinishedAt
	}
}
