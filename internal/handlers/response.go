package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clipforge/clipforge-backend/internal/pkg/apierr"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/requestdata"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps a service error to the envelope, honoring the
// status/code an apierr.Error carries and falling back otherwise.
func RespondServiceError(c *gin.Context, fallbackCode string, err error) {
	if ae := apierr.AsError(err); ae != nil {
		status := ae.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := ae.Code
		if code == "" {
			code = fallbackCode
		}
		RespondError(c, status, code, err)
		return
	}
	RespondError(c, http.StatusBadRequest, fallbackCode, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func requestUserID(c *gin.Context) uuid.UUID {
	return requestdata.UserID(c.Request.Context())
}

func requestDBC(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}
