package transport

import (
	"encoding/json"
	"net/http"

	"github.com/agentrt/streamrt/pkg/events"
)

// errorResponse is the JSON body written for an admission failure: any
// RuntimeError surfaced before the SSE stream is established. Once
// streaming has begun, errors are reported as a terminal task-status
// event instead, never as an HTTP error body.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteRuntimeError writes a JSON error response for a RuntimeError,
// deriving the HTTP status code from its Kind.
func WriteRuntimeError(w http.ResponseWriter, rerr *events.RuntimeError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rerr.HTTPStatus())
	json.NewEncoder(w).Encode(errorResponse{
		Error: errorDetail{
			Kind:    string(rerr.Kind),
			Message: rerr.Error(),
		},
	})
}
