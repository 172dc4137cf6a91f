package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/services"
)

type ContentHandler struct {
	contents services.ContentService
}

func NewContentHandler(contents services.ContentService) *ContentHandler {
	return &ContentHandler{contents: contents}
}

// POST /api/contents
func (h *ContentHandler) Create(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.contents.CreateUpload(requestDBC(c), requestUserID(c), req.Title, req.Filename, req.ContentType)
	if err != nil {
		RespondServiceError(c, "create_content_failed", err)
		return
	}
	RespondOK(c, result)
}

// POST /api/contents/import
func (h *ContentHandler) Import(c *gin.Context) {
	var req struct {
		Title      string           `json:"title"`
		SourceType types.SourceType `json:"source_type"`
		SourceURL  string           `json:"source_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	content, err := h.contents.Import(requestDBC(c), requestUserID(c), req.Title, req.SourceType, req.SourceURL)
	if err != nil {
		RespondServiceError(c, "import_content_failed", err)
		return
	}
	RespondOK(c, gin.H{"content": content})
}

// POST /api/contents/:id/uploaded
func (h *ContentHandler) MarkUploaded(c *gin.Context) {
	contentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
		return
	}
	content, err := h.contents.MarkUploaded(requestDBC(c), requestUserID(c), contentID)
	if err != nil {
		RespondServiceError(c, "mark_uploaded_failed", err)
		return
	}
	RespondOK(c, gin.H{"content": content})
}

// POST /api/contents/:id/process
func (h *ContentHandler) Process(c *gin.Context) {
	contentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
		return
	}
	job, err := h.contents.StartProcessing(requestDBC(c), requestUserID(c), contentID)
	if err != nil {
		RespondServiceError(c, "start_processing_failed", err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/contents/:id/reprocess
func (h *ContentHandler) Reprocess(c *gin.Context) {
	contentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
		return
	}
	job, err := h.contents.Reprocess(requestDBC(c), requestUserID(c), contentID)
	if err != nil {
		RespondServiceError(c, "reprocess_failed", err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// GET /api/contents
func (h *ContentHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	contents, err := h.contents.List(requestDBC(c), requestUserID(c), limit, offset)
	if err != nil {
		RespondServiceError(c, "list_contents_failed", err)
		return
	}
	RespondOK(c, gin.H{"contents": contents})
}

// GET /api/contents/:id
func (h *ContentHandler) Get(c *gin.Context) {
	contentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
		return
	}
	content, err := h.contents.Get(requestDBC(c), requestUserID(c), contentID)
	if err != nil {
		RespondServiceError(c, "content_not_found", err)
		return
	}
	RespondOK(c, gin.H{"content": content})
}

// GET /api/contents/:id/status
func (h *ContentHandler) Status(c *gin.Context) {
	contentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
		return
	}
	status, err := h.contents.Status(requestDBC(c), requestUserID(c), contentID)
	if err != nil {
		RespondServiceError(c, "content_status_failed", err)
		return
	}
	RespondOK(c, status)
}

// DELETE /api/contents/:id
func (h *ContentHandler) Delete(c *gin.Context) {
	contentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
		return
	}
	if err := h.contents.Delete(requestDBC(c), requestUserID(c), contentID); err != nil {
		RespondServiceError(c, "delete_content_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
