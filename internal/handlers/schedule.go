package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clipforge/clipforge-backend/internal/services"
)

type ScheduleHandler struct {
	schedules services.ScheduleService
}

func NewScheduleHandler(schedules services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// POST /api/schedule
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req services.ScheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	post, err := h.schedules.Schedule(requestDBC(c), requestUserID(c), req)
	if err != nil {
		RespondServiceError(c, "schedule_failed", err)
		return
	}
	RespondOK(c, gin.H{"scheduled_post": post})
}

// GET /api/schedule
func (h *ScheduleHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	posts, err := h.schedules.List(requestDBC(c), requestUserID(c), limit, offset)
	if err != nil {
		RespondServiceError(c, "list_schedule_failed", err)
		return
	}
	RespondOK(c, gin.H{"scheduled_posts": posts})
}

// DELETE /api/schedule/:id
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	if err := h.schedules.Cancel(requestDBC(c), requestUserID(c), postID); err != nil {
		RespondServiceError(c, "cancel_schedule_failed", err)
		return
	}
	RespondOK(c, gin.H{"cancelled": true})
}

// PATCH /api/schedule/:id
func (h *ScheduleHandler) Reschedule(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.schedules.Reschedule(requestDBC(c), requestUserID(c), postID, req.ScheduledAt); err != nil {
		RespondServiceError(c, "reschedule_failed", err)
		return
	}
	RespondOK(c, gin.H{"rescheduled": true})
}
