package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/services"
)

type ClipHandler struct {
	clips services.ClipService
}

func NewClipHandler(clips services.ClipService) *ClipHandler {
	return &ClipHandler{clips: clips}
}

// POST /api/clips
func (h *ClipHandler) Create(c *gin.Context) {
	var req services.CreateClipInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	clip, job, err := h.clips.Create(requestDBC(c), requestUserID(c), req)
	if err != nil {
		RespondServiceError(c, "create_clip_failed", err)
		return
	}
	RespondOK(c, gin.H{"clip": clip, "job": job})
}

// POST /api/clips/:id/render
func (h *ClipHandler) Render(c *gin.Context) {
	clipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_clip_id", err)
		return
	}
	var req struct {
		AspectRatio *types.AspectRatio `json:"aspect_ratio,omitempty"`
	}
	// A body is optional here; an empty one keeps the clip's aspect ratio.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	clip, job, err := h.clips.RequestRender(requestDBC(c), requestUserID(c), clipID, req.AspectRatio)
	if err != nil {
		RespondServiceError(c, "render_clip_failed", err)
		return
	}
	RespondOK(c, gin.H{"clip": clip, "job": job})
}

// GET /api/clips
func (h *ClipHandler) List(c *gin.Context) {
	var contentID *uuid.UUID
	if raw := c.Query("content_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
			return
		}
		contentID = &id
	}
	var status *types.ClipStatus
	if raw := c.Query("status"); raw != "" {
		s := types.ClipStatus(raw)
		status = &s
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	clips, err := h.clips.List(requestDBC(c), requestUserID(c), contentID, status, limit, offset)
	if err != nil {
		RespondServiceError(c, "list_clips_failed", err)
		return
	}
	RespondOK(c, gin.H{"clips": clips})
}

// GET /api/clips/:id
func (h *ClipHandler) Get(c *gin.Context) {
	clipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_clip_id", err)
		return
	}
	clip, err := h.clips.Get(requestDBC(c), requestUserID(c), clipID)
	if err != nil {
		RespondServiceError(c, "clip_not_found", err)
		return
	}
	RespondOK(c, gin.H{"clip": clip})
}

// DELETE /api/clips/:id
func (h *ClipHandler) Delete(c *gin.Context) {
	clipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_clip_id", err)
		return
	}
	if err := h.clips.Delete(requestDBC(c), requestUserID(c), clipID); err != nil {
		RespondServiceError(c, "delete_clip_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
