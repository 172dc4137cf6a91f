package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clipforge/clipforge-backend/internal/pkg/apierr"
)

func TestRespondServiceErrorMapsAPIErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "apierr status and code win",
			err:        apierr.NotFound("content_not_found", fmt.Errorf("no such content")),
			wantStatus: http.StatusNotFound,
			wantCode:   "content_not_found",
		},
		{
			name:       "quota errors surface as payment required",
			err:        apierr.QuotaExceeded(fmt.Errorf("limit reached")),
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "quota_exceeded",
		},
		{
			name:       "wrapped apierr still unwraps",
			err:        fmt.Errorf("start processing: %w", apierr.BadRequest("content_not_ready", fmt.Errorf("still uploading"))),
			wantStatus: http.StatusBadRequest,
			wantCode:   "content_not_ready",
		},
		{
			name:       "plain errors fall back",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "fallback_code",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			RespondServiceError(c, "fallback_code", tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, tc.wantStatus)
			}
			var envelope ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if envelope.Error.Code != tc.wantCode {
				t.Fatalf("unexpected code: got=%q want=%q", envelope.Error.Code, tc.wantCode)
			}
			if envelope.Error.Message == "" {
				t.Fatalf("expected a message in the envelope")
			}
		})
	}
}
