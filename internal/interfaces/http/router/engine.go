package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	_ "github.com/leadcrm/backend/docs"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/infrastructure/config"
	"github.com/leadcrm/backend/internal/infrastructure/logger"
	"github.com/leadcrm/backend/internal/interfaces/http/dto"
	"github.com/leadcrm/backend/internal/interfaces/http/handler"
	"github.com/leadcrm/backend/internal/interfaces/http/middleware"
)

// EngineConfig carries everything the HTTP engine is built from.
// Nil Meter, IdempotencyStore or RateLimiter switch the matching middleware off.
type EngineConfig struct {
	HTTP             config.HTTPConfig
	ServiceName      string
	TracingEnabled   bool
	Logger           *zap.Logger
	Meter            metric.Meter
	IdempotencyStore shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Swagger          middleware.SwaggerConfig
	ProfilingLabels  bool

	Invoicing *handler.InvoicingHandler
	System    *handler.SystemHandler
}

// NewEngine builds the gin engine with the middleware chain and all routes
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", c.GetString(logger.GinRequestIDKey)))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeBadRequest, "Method not allowed", c.GetString(logger.GinRequestIDKey)))
	})

	// Order matters: request id before tracing and logging, limits before handlers.
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.TracingAttributeInjector(),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(cfg.HTTP)),
	)
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	if cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	engine.Use(middleware.HTTPMetrics(cfg.Meter), middleware.ProfilingLabels(cfg.ProfilingLabels))

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
	}

	engine.GET("/swagger/*any", middleware.SwaggerProtection(cfg.Swagger), ginSwagger.WrapHandler(swaggerFiles.Handler))

	r := NewRouter(engine)
	if cfg.System != nil {
		r.Register(SystemRoutes(cfg.System))
	}
	if cfg.Invoicing != nil {
		r.Register(InvoicingRoutes(cfg.Invoicing, middleware.Idempotency(middleware.IdempotencyConfig{
			Store:  cfg.IdempotencyStore,
			TTL:    cfg.IdempotencyTTL,
			Logger: log,
		})))
	}
	r.Setup()

	return engine, nil
}

func corsConfig(httpCfg config.HTTPConfig) middleware.CORSConfig {
	cfg := middleware.DefaultCORSConfig()
	cfg.AllowOrigins = httpCfg.CORSAllowOrigins
	if len(httpCfg.CORSAllowMethods) > 0 {
		cfg.AllowMethods = httpCfg.CORSAllowMethods
	}
	if len(httpCfg.CORSAllowHeaders) > 0 {
		cfg.AllowHeaders = httpCfg.CORSAllowHeaders
	}
	return cfg
}
