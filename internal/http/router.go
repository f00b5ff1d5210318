package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/sheetsync/internal/authz"
)

// RouterConfig carries the router's dependencies. Queue and Audit are optional.
type RouterConfig struct {
	Version      string
	DefaultActor string

	Authorizer authz.Authorizer
	Syncer     SyncService
	Configs    MetricConfigService
	Metrics    MetricReader
	Sources    SourceStore
	Queue      TaskQueue
	Audit      interface {
		AuditReader
		ConfigAuditor
	}
	HealthChecks map[string]Pinger
}

// NewRouter wires every API endpoint.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	health := NewHealthController(cfg.Version, cfg.HealthChecks)
	router.GET("/health", health.Status)

	api := router.Group("/api")
	api.Use(ActorMiddleware(cfg.DefaultActor))

	syncController := NewSyncController(cfg.Syncer, cfg.Queue)
	api.POST("/sync", syncController.Sync)
	api.POST("/sync/async", syncController.SyncAsync)
	api.GET("/sync/status", syncController.Status)
	api.GET("/sheets/tabs", syncController.Tabs)
	api.POST("/imports", syncController.Import)
	api.GET("/tasks/:id", syncController.TaskStatus)

	var auditor ConfigAuditor
	if cfg.Audit != nil {
		auditor = cfg.Audit
	}
	metricsController := NewMetricsController(cfg.Authorizer, cfg.Configs, cfg.Metrics, auditor)
	api.GET("/metric-configs", metricsController.ListConfigs)
	api.PUT("/metric-configs", metricsController.PutConfig)
	api.DELETE("/metric-configs/:column", metricsController.DeleteConfig)
	api.GET("/metrics", metricsController.ListMetrics)

	if cfg.Sources != nil {
		sourcesController := NewSourcesController(cfg.Authorizer, cfg.Sources)
		api.GET("/sources", sourcesController.List)
		api.POST("/sources", sourcesController.Add)
		api.PATCH("/sources/:id", sourcesController.SetEnabled)
		api.DELETE("/sources/:id", sourcesController.Remove)
	}

	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Authorizer, cfg.Audit)
		api.GET("/audit", auditController.List)
	}

	return router
}

// SecurityHeadersMiddleware sets conservative headers on every response.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
