package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/treasury/cache"
	"github.com/use-agent/treasury/config"
	"github.com/use-agent/treasury/models"
	"github.com/use-agent/treasury/treasury"
	"github.com/use-agent/treasury/webhook"
)

// DailyHoldings returns a handler for GET /api/v1/holdings/daily.
//
// Flow:
//  1. Serve from the snapshot cache when fresh enough (?max_age overrides
//     the configured default; max_age=0 forces a live run).
//  2. Otherwise run the full orchestration. The run itself cannot fail:
//     per-fund failures arrive as placeholder records.
//  3. Store the snapshot, fire the completion webhook, respond 200.
func DailyHoldings(svc *treasury.Service, cfg *config.Config, snap *cache.Snapshot) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		maxAge := cfg.Cache.MaxAge
		if raw, ok := c.GetQuery("max_age"); ok {
			d, err := time.ParseDuration(raw)
			if err != nil || d < 0 {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Success: false,
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: "max_age must be a non-negative duration, e.g. 30m",
					},
				})
				return
			}
			maxAge = d
		}

		if snap != nil {
			if records, _, hit := snap.Get(maxAge); hit {
				c.JSON(http.StatusOK, models.DailyHoldingsResponse{
					Success:  true,
					Holdings: records,
					Found:    treasury.CountFound(records),
					Total:    len(records),
					Cached:   true,
					TimingMs: time.Since(start).Milliseconds(),
				})
				return
			}
		}

		records := svc.DailyHoldings(c.Request.Context())
		found := treasury.CountFound(records)

		if snap != nil {
			snap.Set(records)
		}
		if cfg.Webhook.URL != "" {
			webhook.DeliverAsync(cfg.Webhook.URL, cfg.Webhook.Secret,
				webhook.HoldingsCompleted(records, found))
		}

		c.JSON(http.StatusOK, models.DailyHoldingsResponse{
			Success:  true,
			Holdings: records,
			Found:    found,
			Total:    len(records),
			Cached:   false,
			TimingMs: time.Since(start).Milliseconds(),
		})
	}
}
