package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentrt/streamrt/pkg/events"
)

func TestWriteRuntimeError(t *testing.T) {
	tests := []struct {
		name       string
		rerr       *events.RuntimeError
		wantStatus int
	}{
		{"client error -> 400", events.NewClientError("prompt is required"), http.StatusBadRequest},
		{"session conflict -> 409", events.NewSessionConflictError("ctx-1"), http.StatusConflict},
		{"upstream error -> 500", events.NewUpstreamStreamError(nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteRuntimeError(rec, tt.rerr)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatus)
			}

			ct := rec.Header().Get("Content-Type")
			if ct != "application/json" {
				t.Errorf("Content-Type = %q, want %q", ct, "application/json")
			}

			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error.Kind != string(tt.rerr.Kind) {
				t.Errorf("error kind = %q, want %q", resp.Error.Kind, tt.rerr.Kind)
			}
		})
	}
}
