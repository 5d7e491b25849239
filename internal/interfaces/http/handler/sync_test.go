package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appsync "github.com/magesync/backend/internal/application/integration"
	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/interfaces/http/dto"
	"github.com/magesync/backend/internal/interfaces/http/middleware"
)

// MockSyncService is a mock implementation of SyncService
type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) Settings() appsync.Settings {
	s := appsync.DefaultSettings()
	s.Options.ErrorSample = 2
	return s
}

func (m *MockSyncService) report(args mock.Arguments) (*appsync.RunReport, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsync.RunReport), args.Error(1)
}

func (m *MockSyncService) SyncOrderSummaries(ctx context.Context, req appsync.ListingRequest) (*appsync.RunReport, error) {
	return m.report(m.Called(ctx, req))
}

func (m *MockSyncService) SyncCustomers(ctx context.Context, req appsync.ListingRequest) (*appsync.RunReport, error) {
	return m.report(m.Called(ctx, req))
}

func (m *MockSyncService) SyncOrderDetails(ctx context.Context, req appsync.DetailsRequest) (*appsync.RunReport, error) {
	return m.report(m.Called(ctx, req))
}

func (m *MockSyncService) SyncOrderDetailsUntilDone(ctx context.Context, req appsync.UntilDoneRequest) (*appsync.RunReport, error) {
	return m.report(m.Called(ctx, req))
}

func (m *MockSyncService) SyncOrder(ctx context.Context, incrementID string, tuning appsync.Tuning) (*appsync.OrderReport, error) {
	args := m.Called(ctx, incrementID, tuning)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsync.OrderReport), args.Error(1)
}

func (m *MockSyncService) SyncShippingAddresses(ctx context.Context, req appsync.AddressRequest) (*appsync.RunReport, error) {
	return m.report(m.Called(ctx, req))
}

func (m *MockSyncService) SyncProducts(ctx context.Context, req appsync.ProductsRequest) (*appsync.RunReport, error) {
	return m.report(m.Called(ctx, req))
}

func (m *MockSyncService) SyncProductsList(ctx context.Context, req appsync.ProductsRequest) (*appsync.RunReport, error) {
	return m.report(m.Called(ctx, req))
}

func (m *MockSyncService) SyncProduct(ctx context.Context, identifier string, idType integration.IdentifierType, storeView string, tuning appsync.Tuning) (*appsync.RunReport, error) {
	return m.report(m.Called(ctx, identifier, idType, storeView, tuning))
}

func (m *MockSyncService) RecentRuns(ctx context.Context, job string, limit int) ([]integration.SyncRun, error) {
	args := m.Called(ctx, job, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncRun), args.Error(1)
}

func sampleReport(job string, failures int) *appsync.RunReport {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	r := integration.NewSyncResult(job, 20, start)
	r.Enumerated = failures + 1
	r.RecordSuccess(integration.UpsertOutcome{Created: true})
	for i := range failures {
		r.RecordFailure(integration.SyncFailure{TargetID: fmt.Sprintf("10000000%d", i), ErrorCode: "REMOTE_HTTP", Attempts: 3})
	}
	r.Finish(start.Add(time.Second))
	return &appsync.RunReport{RunID: uuid.New(), Job: job, Passes: 1, Result: r}
}

func setupSyncRouter(svc SyncService) *gin.Engine {
	middleware.SetupValidator()
	h := NewSyncHandler(svc)
	r := gin.New()
	r.Use(middleware.RequestID())
	g := r.Group("/internal/magento")
	g.POST("/orders/sync-all-full", h.SyncOrderSummaries)
	g.POST("/orders/sync-info", h.SyncOrderDetails)
	g.POST("/orders/sync-info/until-done", h.SyncOrderDetailsUntilDone)
	g.POST("/orders/:incrementId/sync", h.SyncOrder)
	g.POST("/orders/sync-shipping/all-single-session", h.SyncShippingAddresses)
	g.POST("/customers/sync-all-full", h.SyncCustomers)
	g.POST("/products/sync-all", h.SyncProductsList)
	g.POST("/products/sync-detailed", h.SyncProducts)
	g.POST("/products/:identifier/sync", h.SyncProduct)
	g.GET("/runs", h.ListRuns)
	return r
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestSyncHandler_SyncOrderDetails(t *testing.T) {
	svc := new(MockSyncService)
	conc, retries := 3, 1
	pause := 100 * time.Millisecond
	want := appsync.DetailsRequest{
		Tuning:      appsync.Tuning{Trigger: "api", Concurrency: &conc, Retries: &retries, Pause: &pause},
		OnlyMissing: false,
		Limit:       50,
	}
	svc.On("SyncOrderDetails", mock.Anything, want).Return(sampleReport(appsync.JobOrderDetails, 3), nil)

	w := serve(setupSyncRouter(svc), http.MethodPost,
		"/internal/magento/orders/sync-info?only_missing=false&limit=50&concurrency=3&retries=1&pause_ms=100")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, appsync.JobOrderDetails, data["job"])
	result := data["result"].(map[string]any)
	assert.Equal(t, "PARTIAL", result["status"])
	assert.Equal(t, float64(1), result["ok"])
	assert.Equal(t, float64(3), result["fail"])
	assert.Equal(t, float64(3), result["failures_total"])
	assert.Len(t, result["errors"], 2, "error sample is bounded")
	svc.AssertExpectations(t)
}

func TestSyncHandler_ValidationError(t *testing.T) {
	svc := new(MockSyncService)

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/orders/sync-info?concurrency=0")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "concurrency", resp.Error.Details[0].Field)
	svc.AssertNotCalled(t, "SyncOrderDetails", mock.Anything, mock.Anything)
}

func TestSyncHandler_JobRunning(t *testing.T) {
	svc := new(MockSyncService)
	svc.On("SyncOrderSummaries", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: order-summaries", integration.ErrJobRunning))

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/orders/sync-all-full")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeJobRunning, decode(t, w).Error.Code)
}

func TestSyncHandler_AuthFailed(t *testing.T) {
	svc := new(MockSyncService)
	svc.On("SyncCustomers", mock.Anything, mock.Anything).
		Return(sampleReport(appsync.JobCustomers, 0), integration.ErrAuthFailed)

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/customers/sync-all-full")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeAuthFailed, decode(t, w).Error.Code)
}

func TestSyncHandler_ListingWindow(t *testing.T) {
	svc := new(MockSyncService)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.On("SyncOrderSummaries", mock.Anything, mock.MatchedBy(func(req appsync.ListingRequest) bool {
		return req.UpdatedSince != nil && req.UpdatedSince.Equal(since)
	})).Return(sampleReport(appsync.JobOrderSummaries, 0), nil)

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/orders/sync-all-full?updated_since=2024-05-01T00:00:00Z")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestSyncHandler_UntilDone(t *testing.T) {
	svc := new(MockSyncService)
	svc.On("SyncOrderDetailsUntilDone", mock.Anything, mock.MatchedBy(func(req appsync.UntilDoneRequest) bool {
		return req.MaxPasses == 5 && req.Sleep != nil && *req.Sleep == 0 && req.OnlyMissing
	})).Return(&appsync.RunReport{RunID: uuid.New(), Job: appsync.JobOrderDetails, Passes: 3, Stopped: appsync.StopExhausted, Result: sampleReport(appsync.JobOrderDetails, 0).Result}, nil)

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/orders/sync-info/until-done?max_passes=5&sleep_ms=0")

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, float64(3), data["passes"])
	assert.Equal(t, "exhausted", data["stopped"])
}

func TestSyncHandler_SyncOrder(t *testing.T) {
	svc := new(MockSyncService)
	report := &appsync.OrderReport{
		RunReport: *sampleReport(appsync.JobSingleOrder, 0),
		Order:     &integration.StoredOrder{ID: uuid.New(), IncrementID: "100000042", ItemCount: 2, DetailsFetched: true},
	}
	svc.On("SyncOrder", mock.Anything, "100000042", appsync.Tuning{Trigger: "api"}).Return(report, nil)

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/orders/100000042/sync")

	require.Equal(t, http.StatusOK, w.Code)
	order := decode(t, w).Data.(map[string]any)["order"].(map[string]any)
	assert.Equal(t, "100000042", order["increment_id"])
	assert.Equal(t, float64(2), order["item_count"])
	assert.Equal(t, "0.00", order["grand_total"])
}

func TestSyncHandler_SyncShippingAddresses(t *testing.T) {
	svc := new(MockSyncService)
	svc.On("SyncShippingAddresses", mock.Anything, mock.MatchedBy(func(req appsync.AddressRequest) bool {
		return req.OnlyMissing && req.UpdatedBefore == nil
	})).Return(sampleReport(appsync.JobShippingAddresses, 0), nil)

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/orders/sync-shipping/all-single-session")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestSyncHandler_SyncProducts(t *testing.T) {
	svc := new(MockSyncService)
	svc.On("SyncProducts", mock.Anything, mock.MatchedBy(func(req appsync.ProductsRequest) bool {
		return req.BatchSize == 50 && req.StoreView == "en"
	})).Return(sampleReport(appsync.JobProducts, 0), nil)

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/products/sync-detailed?batch_size=50&store_view=en")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestSyncHandler_SyncProductsList(t *testing.T) {
	svc := new(MockSyncService)
	want := appsync.ProductsRequest{Tuning: appsync.Tuning{Trigger: "api"}, StoreView: "default", Limit: 10}
	svc.On("SyncProductsList", mock.Anything, want).Return(sampleReport(appsync.JobProductsList, 0), nil)

	w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/products/sync-all?store_view=default&limit=10")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"job":"products-list"`)
	svc.AssertExpectations(t)
}

func TestSyncHandler_SyncProduct(t *testing.T) {
	t.Run("by sku", func(t *testing.T) {
		svc := new(MockSyncService)
		svc.On("SyncProduct", mock.Anything, "A-100", integration.IdentifierTypeSKU, "", appsync.Tuning{Trigger: "api"}).
			Return(sampleReport(appsync.JobSingleProduct, 0), nil)

		w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/products/A-100/sync?identifier_type=sku")
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("rejects unknown identifier types", func(t *testing.T) {
		svc := new(MockSyncService)

		w := serve(setupSyncRouter(svc), http.MethodPost, "/internal/magento/products/A-100/sync?identifier_type=name")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_ListRuns(t *testing.T) {
	svc := new(MockSyncService)
	run := integration.SyncRun{ID: uuid.New(), Job: appsync.JobCustomers, Trigger: "cli", Passes: 1, Result: *sampleReport(appsync.JobCustomers, 0).Result}
	svc.On("RecentRuns", mock.Anything, appsync.JobCustomers, 20).Return([]integration.SyncRun{run}, nil)

	w := serve(setupSyncRouter(svc), http.MethodGet, "/internal/magento/runs?job=customers")

	require.Equal(t, http.StatusOK, w.Code)
	runs := decode(t, w).Data.([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "cli", runs[0].(map[string]any)["trigger"])
}
