package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/magesync/backend/internal/domain/integration"
)

// SyncRunModel is the history row of one job invocation
type SyncRunModel struct {
	BaseModel
	Job           string         `gorm:"type:varchar(50);not null;index:idx_sync_runs_job_started,priority:1"`
	Trigger       string         `gorm:"type:varchar(20);not null;default:'api'"`
	Status        string         `gorm:"type:varchar(20);not null"`
	Passes        int            `gorm:"not null;default:1"`
	Enumerated    int            `gorm:"not null;default:0"`
	Processed     int            `gorm:"not null;default:0"`
	Succeeded     int            `gorm:"not null;default:0"`
	Failed        int            `gorm:"not null;default:0"`
	Skipped       int            `gorm:"not null;default:0"`
	Created       int            `gorm:"column:created_count;not null;default:0"`
	Updated       int            `gorm:"column:updated_count;not null;default:0"`
	Items         int            `gorm:"not null;default:0"`
	FailuresTotal int            `gorm:"not null;default:0"`
	ErrorsSample  datatypes.JSON `gorm:"type:jsonb"`
	Error         string         `gorm:"type:text;not null;default:''"`
	StartedAt     time.Time      `gorm:"not null;index:idx_sync_runs_job_started,priority:2,sort:desc"`
	FinishedAt    time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// FromDomain populates the model from a run
func (m *SyncRunModel) FromDomain(run *integration.SyncRun) {
	m.ID = run.ID
	m.Job = run.Job
	m.Trigger = run.Trigger
	m.Status = run.Result.Status.String()
	m.Passes = run.Passes
	m.Enumerated = run.Result.Enumerated
	m.Processed = run.Result.Processed
	m.Succeeded = run.Result.Succeeded
	m.Failed = run.Result.Failed
	m.Skipped = run.Result.Skipped
	m.Created = run.Result.Created
	m.Updated = run.Result.Updated
	m.Items = run.Result.Items
	m.FailuresTotal = run.Result.FailuresTotal
	failures := run.Result.Failures
	if failures == nil {
		failures = []integration.SyncFailure{}
	}
	data, _ := json.Marshal(failures)
	m.ErrorsSample = datatypes.JSON(data)
	m.Error = run.Error
	m.StartedAt = run.StartedAt.UTC()
	m.FinishedAt = run.FinishedAt.UTC()
}

// ToDomain converts the model to a run
func (m *SyncRunModel) ToDomain() integration.SyncRun {
	failures := []integration.SyncFailure{}
	if len(m.ErrorsSample) > 0 {
		_ = json.Unmarshal(m.ErrorsSample, &failures)
	}
	return integration.SyncRun{
		ID:      m.ID,
		Job:     m.Job,
		Trigger: m.Trigger,
		Passes:  m.Passes,
		Result: integration.SyncResult{
			Job:           m.Job,
			Status:        integration.SyncStatus(m.Status),
			Enumerated:    m.Enumerated,
			Processed:     m.Processed,
			Succeeded:     m.Succeeded,
			Failed:        m.Failed,
			Skipped:       m.Skipped,
			Created:       m.Created,
			Updated:       m.Updated,
			Items:         m.Items,
			Failures:      failures,
			FailuresTotal: m.FailuresTotal,
			StartedAt:     m.StartedAt,
			FinishedAt:    m.FinishedAt,
		},
		Error:      m.Error,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}
