package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/infrastructure/config"
	"github.com/sourcing/backend/internal/infrastructure/logger"
	"github.com/sourcing/backend/internal/interfaces/http/handler"
	"github.com/sourcing/backend/internal/interfaces/http/middleware"
)

// Handlers are the endpoint groups served by the engine
type Handlers struct {
	Sourcing *handler.SourcingHandler
	OAuth    *handler.OAuthHandler
	Health   *handler.HealthHandler
}

// EngineConfig holds the middleware settings of the engine
type EngineConfig struct {
	HTTP           config.HTTPConfig
	TracingEnabled bool
	ServiceName    string
	// Meter enables HTTP metrics when set
	Meter metric.Meter
}

// NewEngine builds the gin engine with the full middleware chain. The
// returned cleanup stops background work owned by the middleware.
func NewEngine(cfg EngineConfig, h Handlers, log *zap.Logger) (*gin.Engine, func()) {
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
			_ = engine.SetTrustedProxies(nil)
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = middleware.DefaultServiceName
	}

	middleware.SetupValidator()

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: serviceName,
			Enabled:     cfg.TracingEnabled,
			Filter:      middleware.DefaultTracingConfig().Filter,
		}),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log, "/health", "/health/live", "/health/ready"),
		logger.Recovery(log),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.Secure(),
		middleware.CORSWithConfig(cors),
	)
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	cleanup := func() {}
	var apiMiddleware []gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled && cfg.HTTP.RateLimitRequests > 0 && cfg.HTTP.RateLimitWindow > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		cleanup = limiter.Close
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}

	engine.GET("/health", h.Health.Ready)
	engine.GET("/health/live", h.Health.Live)
	engine.GET("/health/ready", h.Health.Ready)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(SourcingRoutes(h.Sourcing, apiMiddleware...))
	r.Register(OAuthRoutes(h.OAuth, apiMiddleware...))
	r.Setup()

	return engine, cleanup
}

// SourcingRoutes registers search and import under /sourcing
func SourcingRoutes(h *handler.SourcingHandler, mw ...gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("sourcing", "/sourcing").
		Use(mw...).
		POST("/search", h.Search).
		POST("/import", h.Import)
}

// OAuthRoutes registers the platform authorization flow under /oauth
func OAuthRoutes(h *handler.OAuthHandler, mw ...gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("oauth", "/oauth").
		Use(mw...).
		GET("/authorize", h.Authorize).
		GET("/callback", h.Callback).
		GET("/status", h.Status).
		DELETE("/credentials", h.Revoke)
}
