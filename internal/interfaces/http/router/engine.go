package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/infrastructure/logger"
	"github.com/jewelryerp/backend/internal/interfaces/http/middleware"
)

// EngineConfig selects the middleware of the API engine
type EngineConfig struct {
	ServiceName  string
	Mode         string
	Logger       *zap.Logger
	AllowOrigins []string
	MaxBodyBytes int64
	// RateLimiter is optional; the caller owns Stop
	RateLimiter *middleware.RateLimiter
	// Meter enables the HTTP metrics when set
	Meter            metric.Meter
	Rejections       middleware.RejectionRecorder
	TracingEnabled   bool
	ProfilingEnabled bool
	// SwaggerEnabled mounts the API docs at /swagger, open to SwaggerAllowedIPs
	// or to everyone when that is empty
	SwaggerEnabled    bool
	SwaggerAllowedIPs []string
}

// NewEngine builds the gin engine with the middleware chain and mounts the
// handlers under /api/v1. /health, /ready and /swagger sit outside the
// tenant scope, as does everything under /api/v1/system.
func NewEngine(cfg EngineConfig, hs Handlers) (*gin.Engine, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.HandleMethodNotAllowed = false
	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		logger.GinMiddleware(cfg.Logger),
		middleware.CORS(cfg.AllowOrigins),
		middleware.Secure(),
	)
	if cfg.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}
	engine.Use(middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled))
	if cfg.Meter != nil {
		metrics, err := middleware.HTTPMetrics(cfg.Meter, cfg.Rejections)
		if err != nil {
			return nil, err
		}
		engine.Use(metrics)
	}
	if cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	r := NewRouter(engine)
	engine.Use(
		middleware.Tenant("/health", "/ready", "/swagger", r.BasePath()+"/system"),
		middleware.SpanEnricher(),
		middleware.Profiling(cfg.ProfilingEnabled),
	)

	if hs.System != nil {
		engine.GET("/health", hs.System.Health)
		engine.GET("/ready", hs.System.Ready)
	}
	if cfg.SwaggerEnabled {
		engine.GET("/swagger/*any", middleware.SwaggerAccess(cfg.SwaggerAllowedIPs), ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	r.Register(hs.Groups()...).Setup()
	engine.NoRoute(middleware.NoRoute())

	cfg.Logger.Info("http routes mounted",
		zap.Int("routes", len(engine.Routes())),
		zap.String("base_path", r.BasePath()))
	return engine, nil
}
