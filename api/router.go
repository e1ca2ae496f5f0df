package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/treasury/api/handler"
	"github.com/use-agent/treasury/api/middleware"
	"github.com/use-agent/treasury/cache"
	"github.com/use-agent/treasury/config"
	"github.com/use-agent/treasury/treasury"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(svc *treasury.Service, cfg *config.Config, snap *cache.Snapshot, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(svc, cfg, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Daily holdings snapshot.
	protected.GET("/holdings/daily", handler.DailyHoldings(svc, cfg, snap))

	return r
}
