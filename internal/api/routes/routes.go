package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Wikid82/bookingshield/internal/api/handlers"
	"github.com/Wikid82/bookingshield/internal/api/middleware"
	"github.com/Wikid82/bookingshield/internal/cerberus"
	"github.com/Wikid82/bookingshield/internal/config"
	"github.com/Wikid82/bookingshield/internal/logger"
	"github.com/Wikid82/bookingshield/internal/ratelimit"
	"github.com/Wikid82/bookingshield/internal/services"
)

// Dependencies are built by the caller so they can be shared with commands
// and background jobs.
type Dependencies struct {
	// Redis is required when the counter store backend is redis.
	Redis redis.UniversalClient
	// Gatherer exposes /metrics when non-nil.
	Gatherer prometheus.Gatherer
}

// Register wires up API routes.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, deps Dependencies) error {
	notifier, err := services.NewNotificationService(cfg.Alerts.URLs, cfg.Alerts.PerMinute)
	if err != nil {
		return fmt.Errorf("alert notifier: %w", err)
	}
	var n services.Notifier
	if notifier != nil {
		n = notifier
	}

	audit := services.NewAuditService(db, n, cfg.Alerts.MinSeverity)
	blocks := services.NewBlockService(db, audit)

	counters, err := newCounterStore(db, cfg, deps.Redis)
	if err != nil {
		return err
	}
	limiter := ratelimit.NewLimiter(counters, blocks, audit)
	guard := cerberus.New(limiter, cfg.Endpoints, cfg.Security.FailurePolicy)

	if _, ok := guard.Endpoint(config.EndpointAdminLogin); !ok {
		return fmt.Errorf("missing rate limit for %s", config.EndpointAdminLogin)
	}

	router.GET("/api/v1/health", handlers.HealthHandler(db))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")

	rateLimitHandler := handlers.NewRateLimitHandler(guard)
	api.POST("/ratelimit/check", rateLimitHandler.Check)

	authService := services.NewAuthService(cfg.Security)
	authHandler := handlers.NewAuthHandler(authService)
	api.POST("/auth/token", guard.Guard(config.EndpointAdminLogin, nil), authHandler.Token)
	if !authService.Enabled() {
		logger.Log().Warn("SHIELD_ADMIN_KEY_HASH not set; admin API disabled")
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(authService), middleware.RequireRole("admin"))
	{
		securityHandler := handlers.NewSecurityHandler(blocks, audit, counters, cfg.Endpoints)
		admin.GET("/blocks", securityHandler.ListBlocks)
		admin.POST("/blocks", securityHandler.CreateBlock)
		admin.DELETE("/blocks/:identifier", securityHandler.DeleteBlock)
		admin.GET("/events", securityHandler.ListEvents)
		admin.GET("/ratelimits", securityHandler.GetRateLimits)
		admin.GET("/endpoints", securityHandler.GetEndpoints)
	}

	return nil
}

func newCounterStore(db *gorm.DB, cfg config.Config, client redis.UniversalClient) (ratelimit.CounterStore, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		if client == nil {
			return nil, fmt.Errorf("redis counter store selected but no redis client configured")
		}
		return ratelimit.NewRedisCounterStore(client), nil
	default:
		return ratelimit.NewGormCounterStore(db), nil
	}
}
