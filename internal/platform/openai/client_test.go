package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", srv.URL)
	t.Setenv("OPENAI_MAX_RETRIES", "0")

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := NewClient(log)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func responsesHandler(t *testing.T, body string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

var tinySchema = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"ok": map[string]any{"type": "boolean"}},
	"required":             []string{"ok"},
	"additionalProperties": false,
}

func TestGenerateJSONParsesOutputText(t *testing.T) {
	c := newTestClient(t, responsesHandler(t, `{
		"output": [{"type": "message", "role": "assistant",
			"content": [{"type": "output_text", "text": "{\"ok\": true}"}]}]
	}`))

	out, err := c.GenerateJSON(context.Background(), "sys", "user", "tiny", tinySchema)
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("got %v", out)
	}
}

func TestGenerateJSONFlagsUnusableOutput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{
			"output": [{"type": "message", "role": "assistant",
				"content": [{"type": "output_text", "text": "this is {{ not json"}]}]
		}`},
		{"refusal", `{"refusal": "cannot help with that", "output": []}`},
		{"empty output", `{"output": []}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, responsesHandler(t, tc.body))

			_, err := c.GenerateJSON(context.Background(), "sys", "user", "tiny", tinySchema)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformedOutput) {
				t.Fatalf("expected ErrMalformedOutput, got %v", err)
			}
		})
	}
}

func TestGenerateJSONServerErrorIsNotMalformedOutput(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))

	_, err := c.GenerateJSON(context.Background(), "sys", "user", "tiny", tinySchema)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("transport failure must not look like bad output: %v", err)
	}
}
