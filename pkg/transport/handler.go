package transport

import (
	"context"

	"github.com/agentrt/streamrt/pkg/events"
)

// TurnRequest is the transport-level representation of a POST /invocations
// body: a prompt plus caller-supplied metadata forwarded to the turn
// source unmodified.
type TurnRequest struct {
	ContextID string
	Prompt    string
	Metadata  map[string]any

	// LastEventID is the value of an inbound Last-Event-ID header, used
	// to replay missed events on reconnect. Empty for a fresh subscription.
	LastEventID string
}

// TurnHandler admits a turn and streams its events to w until the turn
// completes or the client disconnects. It is the single entry point the
// middleware chain wraps.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req *TurnRequest, w ResponseWriter) error
}

// TurnHandlerFunc adapts a function to a TurnHandler.
type TurnHandlerFunc func(ctx context.Context, req *TurnRequest, w ResponseWriter) error

// HandleTurn calls f(ctx, req, w).
func (f TurnHandlerFunc) HandleTurn(ctx context.Context, req *TurnRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// ResponseWriter abstracts the SSE response contract so a TurnHandler can
// stream buffered events without knowing the underlying transport. It is
// the write-only "sink" side of a subscription.
type ResponseWriter interface {
	// WriteEvent frames and sends one buffered event, including its id
	// and kind.
	WriteEvent(ctx context.Context, be events.BufferedEvent) error

	// WriteHeartbeat sends an off-the-record comment line. It carries no
	// buffer entry and no id.
	WriteHeartbeat(ctx context.Context) error

	// Flush ensures buffered data reaches the client immediately.
	Flush() error
}
