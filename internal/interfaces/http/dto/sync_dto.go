package dto

import (
	"time"

	appsync "github.com/magesync/backend/internal/application/integration"
	"github.com/magesync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Trigger requests, bound from the query string
// ---------------------------------------------------------------------------

// TuningQuery overrides the pass options of one run
type TuningQuery struct {
	Concurrency *int `form:"concurrency" binding:"omitempty,min=1,max=50"`
	Retries     *int `form:"retries" binding:"omitempty,min=0,max=10"`
	PauseMS     *int `form:"pause_ms" binding:"omitempty,min=0,max=60000"`
}

// Tuning converts the query into service overrides
func (q TuningQuery) Tuning(trigger string) appsync.Tuning {
	t := appsync.Tuning{Trigger: trigger, Concurrency: q.Concurrency, Retries: q.Retries}
	if q.PauseMS != nil {
		pause := time.Duration(*q.PauseMS) * time.Millisecond
		t.Pause = &pause
	}
	return t
}

// ListingQuery selects a remote listing window
type ListingQuery struct {
	TuningQuery
	UpdatedSince *time.Time `form:"updated_since" time_format:"2006-01-02T15:04:05Z07:00"`
	// All lists everything regardless of updated_at
	All bool `form:"all"`
}

// Request converts the query into a service request
func (q ListingQuery) Request(trigger string) appsync.ListingRequest {
	req := appsync.ListingRequest{Tuning: q.Tuning(trigger), UpdatedSince: q.UpdatedSince}
	if q.All {
		zero := time.Time{}
		req.UpdatedSince = &zero
	}
	return req
}

// DetailsQuery selects the order detail backfill
type DetailsQuery struct {
	TuningQuery
	OnlyMissing *bool `form:"only_missing"`
	Limit       int   `form:"limit" binding:"omitempty,min=1,max=10000"`
}

// Request converts the query into a service request; only_missing defaults to true
func (q DetailsQuery) Request(trigger string) appsync.DetailsRequest {
	onlyMissing := true
	if q.OnlyMissing != nil {
		onlyMissing = *q.OnlyMissing
	}
	return appsync.DetailsRequest{Tuning: q.Tuning(trigger), OnlyMissing: onlyMissing, Limit: q.Limit}
}

// UntilDoneQuery repeats the detail backfill until nothing is left
type UntilDoneQuery struct {
	DetailsQuery
	MaxPasses int  `form:"max_passes" binding:"omitempty,min=1,max=100000"`
	SleepMS   *int `form:"sleep_ms" binding:"omitempty,min=0,max=600000"`
}

// Request converts the query into a service request
func (q UntilDoneQuery) Request(trigger string) appsync.UntilDoneRequest {
	req := appsync.UntilDoneRequest{DetailsRequest: q.DetailsQuery.Request(trigger), MaxPasses: q.MaxPasses}
	if q.SleepMS != nil {
		sleep := time.Duration(*q.SleepMS) * time.Millisecond
		req.Sleep = &sleep
	}
	return req
}

// AddressQuery selects the shipping address backfill
type AddressQuery struct {
	TuningQuery
	OnlyMissing   *bool      `form:"only_missing"`
	UpdatedBefore *time.Time `form:"updated_before" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit         int        `form:"limit" binding:"omitempty,min=1,max=100000"`
}

// Request converts the query into a service request; only_missing defaults to true
func (q AddressQuery) Request(trigger string) appsync.AddressRequest {
	onlyMissing := true
	if q.OnlyMissing != nil {
		onlyMissing = *q.OnlyMissing
	}
	return appsync.AddressRequest{
		Tuning:        q.Tuning(trigger),
		OnlyMissing:   onlyMissing,
		UpdatedBefore: q.UpdatedBefore,
		Limit:         q.Limit,
	}
}

// ProductsQuery selects the products job
type ProductsQuery struct {
	TuningQuery
	StoreView string `form:"store_view" binding:"omitempty,max=64"`
	BatchSize int    `form:"batch_size" binding:"omitempty,min=1,max=500"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100000"`
}

// Request converts the query into a service request
func (q ProductsQuery) Request(trigger string) appsync.ProductsRequest {
	return appsync.ProductsRequest{
		Tuning:    q.Tuning(trigger),
		StoreView: q.StoreView,
		BatchSize: q.BatchSize,
		Limit:     q.Limit,
	}
}

// ProductQuery selects how a single product identifier is read
type ProductQuery struct {
	TuningQuery
	IdentifierType string `form:"identifier_type" binding:"omitempty,oneof=id sku"`
	StoreView      string `form:"store_view" binding:"omitempty,max=64"`
}

// Type returns the identifier type, id by default
func (q ProductQuery) Type() integration.IdentifierType {
	if q.IdentifierType == "" {
		return integration.IdentifierTypeID
	}
	return integration.IdentifierType(q.IdentifierType)
}

// RunsQuery lists the run history
type RunsQuery struct {
	Job   string `form:"job" binding:"omitempty,max=64"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// SyncFailureDTO is one sampled failure
type SyncFailureDTO struct {
	TargetID     string `json:"target_id"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Attempts     int    `json:"attempts"`
}

// SyncResultDTO is the aggregate of a run
type SyncResultDTO struct {
	Status        string           `json:"status"`
	Enumerated    int              `json:"enumerated"`
	Processed     int              `json:"processed"`
	Succeeded     int              `json:"ok"`
	Failed        int              `json:"fail"`
	Skipped       int              `json:"skipped"`
	Created       int              `json:"created"`
	Updated       int              `json:"updated"`
	Items         int              `json:"items"`
	FailuresTotal int              `json:"failures_total"`
	Errors        []SyncFailureDTO `json:"errors"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	DurationMS    int64            `json:"duration_ms"`
}

// NewSyncResultDTO converts a result, keeping at most sample failures
func NewSyncResultDTO(r *integration.SyncResult, sample int) SyncResultDTO {
	if r == nil {
		return SyncResultDTO{Errors: []SyncFailureDTO{}}
	}
	errs := make([]SyncFailureDTO, 0, min(len(r.Failures), max(sample, 0)))
	for _, f := range r.Failures {
		if len(errs) >= sample {
			break
		}
		errs = append(errs, SyncFailureDTO{
			TargetID:     f.TargetID,
			ErrorCode:    f.ErrorCode,
			ErrorMessage: f.ErrorMessage,
			Attempts:     f.Attempts,
		})
	}
	return SyncResultDTO{
		Status:        r.Status.String(),
		Enumerated:    r.Enumerated,
		Processed:     r.Processed,
		Succeeded:     r.Succeeded,
		Failed:        r.Failed,
		Skipped:       r.Skipped,
		Created:       r.Created,
		Updated:       r.Updated,
		Items:         r.Items,
		FailuresTotal: r.FailuresTotal,
		Errors:        errs,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		DurationMS:    r.Duration().Milliseconds(),
	}
}

// RunReportDTO is the response of every trigger
type RunReportDTO struct {
	RunID   string        `json:"run_id"`
	Job     string        `json:"job"`
	Passes  int           `json:"passes"`
	Stopped string        `json:"stopped,omitempty"`
	Result  SyncResultDTO `json:"result"`
}

// NewRunReportDTO converts a service report
func NewRunReportDTO(r *appsync.RunReport, sample int) RunReportDTO {
	return RunReportDTO{
		RunID:   r.RunID.String(),
		Job:     r.Job,
		Passes:  r.Passes,
		Stopped: string(r.Stopped),
		Result:  NewSyncResultDTO(r.Result, sample),
	}
}

// StoredOrderDTO is the local copy of an order after a single-order sync
type StoredOrderDTO struct {
	ID                string     `json:"id"`
	IncrementID       string     `json:"increment_id"`
	Status            string     `json:"status,omitempty"`
	State             string     `json:"state,omitempty"`
	GrandTotal        string     `json:"grand_total"`
	CustomerEmail     string     `json:"customer_email,omitempty"`
	ShippingAddressID string     `json:"shipping_address_id,omitempty"`
	DetailsFetched    bool       `json:"details_fetched"`
	DetailsFetchedAt  *time.Time `json:"details_fetched_at,omitempty"`
	ItemCount         int        `json:"item_count"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// OrderReportDTO is the response of a single-order sync
type OrderReportDTO struct {
	RunReportDTO
	Order *StoredOrderDTO `json:"order"`
}

// NewOrderReportDTO converts a single-order report
func NewOrderReportDTO(r *appsync.OrderReport, sample int) OrderReportDTO {
	out := OrderReportDTO{RunReportDTO: NewRunReportDTO(&r.RunReport, sample)}
	if o := r.Order; o != nil {
		out.Order = &StoredOrderDTO{
			ID:                o.ID.String(),
			IncrementID:       o.IncrementID,
			Status:            o.Status,
			State:             o.State,
			GrandTotal:        o.GrandTotal.StringFixed(2),
			CustomerEmail:     o.CustomerEmail,
			ShippingAddressID: o.ShippingAddressID,
			DetailsFetched:    o.DetailsFetched,
			DetailsFetchedAt:  o.DetailsFetchedAt,
			ItemCount:         o.ItemCount,
			UpdatedAt:         o.UpdatedAt,
		}
	}
	return out
}

// SyncRunDTO is one row of the run history
type SyncRunDTO struct {
	ID         string        `json:"id"`
	Job        string        `json:"job"`
	Trigger    string        `json:"trigger"`
	Passes     int           `json:"passes"`
	Error      string        `json:"error,omitempty"`
	Result     SyncResultDTO `json:"result"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// NewSyncRunDTOs converts the run history
func NewSyncRunDTOs(runs []integration.SyncRun, sample int) []SyncRunDTO {
	out := make([]SyncRunDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, SyncRunDTO{
			ID:         run.ID.String(),
			Job:        run.Job,
			Trigger:    run.Trigger,
			Passes:     run.Passes,
			Error:      run.Error,
			Result:     NewSyncResultDTO(&run.Result, sample),
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
		})
	}
	return out
}
