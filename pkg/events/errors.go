package events

import "fmt"

// ErrorKind categorizes a runtime error for HTTP status mapping and logging.
// These are the kinds from the runtime's error taxonomy, not Go error types:
// most never reach an HTTP boundary at all.
type ErrorKind string

const (
	// ErrorKindClient covers malformed requests, invalid prompts, and auth
	// failures. Surfaced as HTTP 4xx; no event is emitted.
	ErrorKindClient ErrorKind = "client_error"
	// ErrorKindSessionConflict means a second turn was started while one is
	// already active on the session. Surfaced as HTTP 409; no event.
	ErrorKindSessionConflict ErrorKind = "session_conflict"
	// ErrorKindTransport means a subscriber sink write failed (disconnected
	// mid-stream). Handled locally: the subscription is removed.
	ErrorKindTransport ErrorKind = "transport_error"
	// ErrorKindSlowSubscriber means a subscriber's queue filled past the
	// drop threshold. Handled locally: the subscription is force-closed.
	ErrorKindSlowSubscriber ErrorKind = "slow_subscriber"
	// ErrorKindUpstreamStream means the model provider failed mid-turn.
	// Surfaced as a terminal task-status: failed event.
	ErrorKindUpstreamStream ErrorKind = "upstream_stream_error"
	// ErrorKindAssembler means tool-call arguments never became valid JSON
	// by upstream completion. The slot is silently dropped; the turn
	// continues.
	ErrorKindAssembler ErrorKind = "assembler_error"
)

// RuntimeError is a structured error carrying enough context to map onto
// either an HTTP response or a terminal event, depending on where in the
// pipeline it surfaces.
type RuntimeError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *RuntimeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

// NewClientError builds a ClientError for a malformed request.
func NewClientError(message string) *RuntimeError {
	return &RuntimeError{Kind: ErrorKindClient, Message: message}
}

// NewSessionConflictError builds a SessionConflict error.
func NewSessionConflictError(contextID string) *RuntimeError {
	return &RuntimeError{Kind: ErrorKindSessionConflict, Message: fmt.Sprintf("session %q already has an active turn", contextID)}
}

// NewTransportError builds a TransportError wrapping the underlying write failure.
func NewTransportError(cause error) *RuntimeError {
	return &RuntimeError{Kind: ErrorKindTransport, Message: "subscriber sink write failed", Cause: cause}
}

// NewSlowSubscriberError builds a SlowSubscriber error for a given subscription.
func NewSlowSubscriberError(subscriptionID string) *RuntimeError {
	return &RuntimeError{Kind: ErrorKindSlowSubscriber, Message: fmt.Sprintf("subscription %q exceeded queue capacity", subscriptionID)}
}

// NewUpstreamStreamError builds an UpstreamStreamError wrapping the provider failure.
func NewUpstreamStreamError(cause error) *RuntimeError {
	return &RuntimeError{Kind: ErrorKindUpstreamStream, Message: "upstream model stream failed", Cause: cause}
}

// NewAssemblerError builds an AssemblerError for a slot that never validated.
func NewAssemblerError(index int) *RuntimeError {
	return &RuntimeError{Kind: ErrorKindAssembler, Message: fmt.Sprintf("tool-call slot %d discarded: arguments never valid JSON", index)}
}

// HTTPStatus maps a RuntimeError's Kind to the HTTP status the SSE transport
// should return when the failure precedes stream establishment.
func (e *RuntimeError) HTTPStatus() int {
	switch e.Kind {
	case ErrorKindClient:
		return 400
	case ErrorKindSessionConflict:
		return 409
	default:
		return 500
	}
}
