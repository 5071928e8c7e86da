package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/infrastructure/config"
	"github.com/liberta/backend/internal/infrastructure/logger"
	"github.com/liberta/backend/internal/interfaces/http/handler"
	"github.com/liberta/backend/internal/interfaces/http/middleware"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	Health  *handler.HealthHandler
	Webhook *handler.CarrierWebhookHandler
	Sync    *handler.SyncHandler
}

// New builds the gin engine with logging, recovery and all routes
func New(cfg *config.Config, log *zap.Logger, h Handlers) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		logger.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
	)
	if len(cfg.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.HTTP.TrustedProxies)
	}

	engine.GET("/health", h.Health.Health)

	webhookLimiter := middleware.NewRateLimiter(cfg.HTTP.WebhookRateLimit, cfg.HTTP.WebhookRateBurst)
	webhooks := engine.Group("/webhooks", webhookLimiter.Handler())
	{
		webhooks.POST("/carrier", h.Webhook.Handle)
	}

	v1 := engine.Group("/api/v1")
	{
		sync := v1.Group("/sync")
		{
			sync.GET("/runs", h.Sync.ListRuns)
			sync.POST("/ingest", h.Sync.TriggerIngest)
			sync.POST("/reconcile", h.Sync.TriggerReconcile)
		}
	}

	return engine
}
