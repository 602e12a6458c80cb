// Package router assembles the gin engine: middleware stack, health probe
// and the versioned fulfillment API.
package router

import (
	"net/http"
	"time"

	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/interfaces/http/handler"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router registers domain route groups under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware applied to every API route but not to the engine
func (r *Router) Use(mw ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, mw...)
	return r
}

// Register adds a RouteRegistrar to be registered by Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	api.Use(r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Options configures the engine built by NewEngine
type Options struct {
	Logger         *zap.Logger
	Meter          metric.Meter
	Tracing        middleware.TracingConfig
	CORS           middleware.CORSConfig
	Tenant         middleware.TenantMiddlewareConfig
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	TrustedProxies []string
}

// DefaultOptions returns options suitable for development
func DefaultOptions() Options {
	return Options{
		Logger:         zap.NewNop(),
		Tracing:        middleware.DefaultTracingConfig(),
		CORS:           middleware.DefaultCORSConfig(),
		Tenant:         middleware.DefaultTenantConfig(),
		MaxBodyBytes:   middleware.DefaultMaxBodyBytes,
		RequestTimeout: 30 * time.Second,
	}
}

// Handlers are the HTTP handlers served by the engine. A nil handler leaves
// its routes unregistered.
type Handlers struct {
	Health         *handler.HealthHandler
	PurchaseOrders *handler.PurchaseOrderHandler
	Deliveries     *handler.DeliveryHandler
	Overdue        *handler.OverdueHandler
	Outbox         *handler.OutboxHandler
}

// NewEngine builds the gin engine with the middleware stack in order:
//  1. Tracing - server span per request
//  2. RequestID - generate/propagate request ID
//  3. Recovery - catch panics
//  4. Logger - log requests
//  5. Security headers, CORS, body limit, timeout
//  6. Metrics
//
// API routes additionally resolve the tenant and annotate the span.
func NewEngine(opts Options, h Handlers) (*gin.Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(opts.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
			return nil, err
		}
	}

	engine.Use(
		middleware.TracingWithConfig(opts.Tracing),
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(opts.CORS),
		middleware.BodyLimit(opts.MaxBodyBytes),
		middleware.Timeout(opts.RequestTimeout),
		middleware.HTTPMetrics(opts.Meter, log),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":       "NOT_FOUND",
				"message":    "Route not found",
				"request_id": middleware.GetRequestID(c),
			},
		})
	})

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(
		middleware.TenantMiddleware(opts.Tenant),
		middleware.TracingAttributeInjector(),
	)
	for _, group := range domainGroups(h) {
		r.Register(group)
	}
	r.Setup()

	return engine, nil
}
