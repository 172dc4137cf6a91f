package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/services"
)

type GenerateHandler struct {
	generator services.GeneratorService
}

func NewGenerateHandler(generator services.GeneratorService) *GenerateHandler {
	return &GenerateHandler{generator: generator}
}

// POST /api/contents/:id/generate
func (h *GenerateHandler) Generate(c *gin.Context) {
	contentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
		return
	}
	var req struct {
		Platforms  []types.Platform `json:"platforms"`
		WithQuotes bool             `json:"with_quotes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.generator.GenerateForContent(requestDBC(c), requestUserID(c), contentID, req.Platforms, req.WithQuotes)
	if err != nil {
		RespondServiceError(c, "generate_failed", err)
		return
	}
	RespondOK(c, result)
}
