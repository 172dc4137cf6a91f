package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clipforge/clipforge-backend/internal/services"
)

type UsageHandler struct {
	quota services.QuotaService
}

func NewUsageHandler(quota services.QuotaService) *UsageHandler {
	return &UsageHandler{quota: quota}
}

// GET /api/usage
func (h *UsageHandler) GetUsage(c *gin.Context) {
	summary, err := h.quota.Usage(requestDBC(c), requestUserID(c))
	if err != nil {
		RespondServiceError(c, "usage_failed", err)
		return
	}
	RespondOK(c, summary)
}
