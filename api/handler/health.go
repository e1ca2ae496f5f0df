package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/treasury/config"
	"github.com/use-agent/treasury/models"
	"github.com/use-agent/treasury/treasury"
)

// Health returns a handler for GET /api/v1/health.
func Health(svc *treasury.Service, cfg *config.Config, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        "healthy",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			RenderMode:    cfg.Render.Mode,
			RosterSize:    svc.RosterSize(),
		})
	}
}
