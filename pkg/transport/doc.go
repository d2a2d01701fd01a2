// Package transport defines the handler interface and middleware chain for
// the runtime's SSE transport layer.
//
// The transport layer bridges external clients and the session coordinator.
// It turns an inbound turn request into a TurnRequest, dispatches it through
// the middleware chain to the coordinator, and streams the resulting
// buffered events back to the client through a ResponseWriter.
//
// # Handler Interface
//
// TurnHandler is the single entry point the middleware chain wraps:
// admit a turn and stream its events to a ResponseWriter until the turn
// completes or the client disconnects. The HTTP adapter (pkg/transport/http)
// provides the concrete ResponseWriter that frames events as SSE.
//
// # Middleware
//
// The middleware chain wraps TurnHandler with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. Custom middleware
// can be added for application-specific concerns such as authentication.
package transport
