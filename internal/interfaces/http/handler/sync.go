package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	appsync "github.com/magesync/backend/internal/application/integration"
	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/interfaces/http/dto"
)

// httpTrigger is recorded in sync_runs.trigger for runs started over HTTP
const httpTrigger = "api"

// SyncService is what the sync handler needs from the application layer
type SyncService interface {
	Settings() appsync.Settings
	SyncOrderSummaries(ctx context.Context, req appsync.ListingRequest) (*appsync.RunReport, error)
	SyncCustomers(ctx context.Context, req appsync.ListingRequest) (*appsync.RunReport, error)
	SyncOrderDetails(ctx context.Context, req appsync.DetailsRequest) (*appsync.RunReport, error)
	SyncOrderDetailsUntilDone(ctx context.Context, req appsync.UntilDoneRequest) (*appsync.RunReport, error)
	SyncOrder(ctx context.Context, incrementID string, tuning appsync.Tuning) (*appsync.OrderReport, error)
	SyncShippingAddresses(ctx context.Context, req appsync.AddressRequest) (*appsync.RunReport, error)
	SyncProducts(ctx context.Context, req appsync.ProductsRequest) (*appsync.RunReport, error)
	SyncProductsList(ctx context.Context, req appsync.ProductsRequest) (*appsync.RunReport, error)
	SyncProduct(ctx context.Context, identifier string, idType integration.IdentifierType, storeView string, tuning appsync.Tuning) (*appsync.RunReport, error)
	RecentRuns(ctx context.Context, job string, limit int) ([]integration.SyncRun, error)
}

var _ SyncService = (*appsync.Service)(nil)

// SyncHandler exposes one trigger route per job
type SyncHandler struct {
	BaseHandler
	service SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// runContext detaches the job from the request: a client that hangs up
// does not abort a pass half way through.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *SyncHandler) sample() int {
	return h.service.Settings().Options.ErrorSample
}

func (h *SyncHandler) respond(c *gin.Context, report *appsync.RunReport, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewRunReportDTO(report, h.sample()))
}

// SyncOrderSummaries handles POST /orders/sync-all-full
func (h *SyncHandler) SyncOrderSummaries(c *gin.Context) {
	var q dto.ListingQuery
	if !h.BindQuery(c, &q) {
		return
	}
	report, err := h.service.SyncOrderSummaries(runContext(c), q.Request(httpTrigger))
	h.respond(c, report, err)
}

// SyncCustomers handles POST /customers/sync-all-full
func (h *SyncHandler) SyncCustomers(c *gin.Context) {
	var q dto.ListingQuery
	if !h.BindQuery(c, &q) {
		return
	}
	report, err := h.service.SyncCustomers(runContext(c), q.Request(httpTrigger))
	h.respond(c, report, err)
}

// SyncOrderDetails handles POST /orders/sync-info
func (h *SyncHandler) SyncOrderDetails(c *gin.Context) {
	var q dto.DetailsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	report, err := h.service.SyncOrderDetails(runContext(c), q.Request(httpTrigger))
	h.respond(c, report, err)
}

// SyncOrderDetailsUntilDone handles POST /orders/sync-info/until-done
func (h *SyncHandler) SyncOrderDetailsUntilDone(c *gin.Context) {
	var q dto.UntilDoneQuery
	if !h.BindQuery(c, &q) {
		return
	}
	report, err := h.service.SyncOrderDetailsUntilDone(runContext(c), q.Request(httpTrigger))
	h.respond(c, report, err)
}

// SyncOrder handles POST /orders/:incrementId/sync
func (h *SyncHandler) SyncOrder(c *gin.Context) {
	var q dto.TuningQuery
	if !h.BindQuery(c, &q) {
		return
	}
	incrementID := strings.TrimSpace(c.Param("incrementId"))
	if incrementID == "" {
		h.ErrorWithCode(c, dto.ErrCodeInvalidTarget, "increment id is required")
		return
	}

	report, err := h.service.SyncOrder(runContext(c), incrementID, q.Tuning(httpTrigger))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewOrderReportDTO(report, h.sample()))
}

// SyncShippingAddresses handles POST /orders/sync-shipping/all-single-session
func (h *SyncHandler) SyncShippingAddresses(c *gin.Context) {
	var q dto.AddressQuery
	if !h.BindQuery(c, &q) {
		return
	}
	report, err := h.service.SyncShippingAddresses(runContext(c), q.Request(httpTrigger))
	h.respond(c, report, err)
}

// SyncProducts handles POST /products/sync-detailed
func (h *SyncHandler) SyncProducts(c *gin.Context) {
	var q dto.ProductsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	report, err := h.service.SyncProducts(runContext(c), q.Request(httpTrigger))
	h.respond(c, report, err)
}

// SyncProductsList handles POST /products/sync-all
func (h *SyncHandler) SyncProductsList(c *gin.Context) {
	var q dto.ProductsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	report, err := h.service.SyncProductsList(runContext(c), q.Request(httpTrigger))
	h.respond(c, report, err)
}

// SyncProduct handles POST /products/:identifier/sync
func (h *SyncHandler) SyncProduct(c *gin.Context) {
	var q dto.ProductQuery
	if !h.BindQuery(c, &q) {
		return
	}
	identifier := strings.TrimSpace(c.Param("identifier"))
	if identifier == "" {
		h.ErrorWithCode(c, dto.ErrCodeInvalidTarget, "identifier is required")
		return
	}
	report, err := h.service.SyncProduct(runContext(c), identifier, q.Type(), q.StoreView, q.Tuning(httpTrigger))
	h.respond(c, report, err)
}

// ListRuns handles GET /runs
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var q dto.RunsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	runs, err := h.service.RecentRuns(c.Request.Context(), q.Job, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSyncRunDTOs(runs, h.sample()))
}
