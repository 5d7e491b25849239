package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/magesync/backend/internal/infrastructure/logger"
	"github.com/magesync/backend/internal/interfaces/http/handler"
	"github.com/magesync/backend/internal/interfaces/http/middleware"
)

// defaultMaxBodySize caps request bodies on the trigger routes
const defaultMaxBodySize = 1 << 20

// EngineConfig carries everything the HTTP surface is built from
type EngineConfig struct {
	Logger         *zap.Logger
	Sync           *handler.SyncHandler
	System         *handler.SystemHandler
	Metrics        http.Handler
	InternalToken  string
	TrustedProxies []string
	MaxBodySize    int64
	// Tracing starts a span per request under ServiceName
	Tracing     bool
	ServiceName string
}

// SyncRoutes declares the trigger routes
func SyncRoutes(h *handler.SyncHandler) *DomainGroup {
	g := NewDomainGroup("magento", "")

	orders := g.Group("orders", "/orders")
	orders.POST("/sync-all-full", h.SyncOrderSummaries).
		POST("/sync-info", h.SyncOrderDetails).
		POST("/sync-info/until-done", h.SyncOrderDetailsUntilDone).
		POST("/sync-shipping/all-single-session", h.SyncShippingAddresses).
		POST("/:incrementId/sync", h.SyncOrder)

	g.Group("customers", "/customers").
		POST("/sync-all-full", h.SyncCustomers)

	g.Group("products", "/products").
		POST("/sync-all", h.SyncProductsList).
		POST("/sync-detailed", h.SyncProducts).
		POST("/:identifier/sync", h.SyncProduct)

	g.GET("/runs", h.ListRuns)
	return g
}

// NewEngine builds the gin engine with the ambient middleware, the health
// and metrics endpoints, and the token-guarded trigger routes.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(middleware.RequestID())
	if cfg.Tracing {
		engine.Use(middleware.Tracing(cfg.ServiceName), middleware.SpanAttributes())
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
	}
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	r := NewRouter(engine).
		Use(middleware.InternalToken(cfg.InternalToken)).
		Use(middleware.BodyLimit(maxBody))
	if cfg.Sync != nil {
		r.Register(SyncRoutes(cfg.Sync))
	}
	r.Setup()

	return engine, nil
}
