package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clipforge/clipforge-backend/internal/services"
)

// CronHandler backs the endpoints an external scheduler hits on a timer.
// The router guards them with the shared cron secret.
type CronHandler struct {
	publisher services.PublishService
	quota     services.QuotaService
}

func NewCronHandler(publisher services.PublishService, quota services.QuotaService) *CronHandler {
	return &CronHandler{publisher: publisher, quota: quota}
}

// GET /api/cron/publish-scheduled
func (h *CronHandler) PublishScheduled(c *gin.Context) {
	report, err := h.publisher.RunPublishingSweep(c.Request.Context(), time.Now())
	if err != nil {
		RespondServiceError(c, "publish_sweep_failed", err)
		return
	}
	RespondOK(c, report)
}

// GET /api/cron/reset-usage
func (h *CronHandler) ResetUsage(c *gin.Context) {
	reset, err := h.quota.ResetMonthlyUsage(requestDBC(c))
	if err != nil {
		RespondServiceError(c, "reset_usage_failed", err)
		return
	}
	RespondOK(c, gin.H{"users_reset": reset})
}
