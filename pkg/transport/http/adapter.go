package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/agentrt/streamrt/pkg/auth"
	"github.com/agentrt/streamrt/pkg/coordinator"
	"github.com/agentrt/streamrt/pkg/events"
	"github.com/agentrt/streamrt/pkg/router"
	"github.com/agentrt/streamrt/pkg/transport"
)

// SessionHeader is the canonical header carrying a session's contextId.
// SessionHeaderAlias is accepted as a fallback for clients that use the
// shorter name.
const (
	SessionHeader      = "X-Amzn-Bedrock-AgentCore-Runtime-Session-Id"
	SessionHeaderAlias = "X-Session-Id"
	lastEventIDHeader  = "Last-Event-ID"
)

// Adapter serves the turn-streaming surface over HTTP: POST /invocations
// admits a turn and streams its events as SSE; DELETE /invocations/{id}
// cancels an active turn; GET /ping reports liveness.
type Adapter struct {
	coord   *coordinator.Coordinator
	handler transport.TurnHandler
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr              string
	MaxBodySize       int64
	ShutdownTimeout   int // seconds
	HeartbeatInterval time.Duration

	// AllowInternal, when true, lets subscribers see internal: prefixed
	// events. Sets router.Filter.AllowInternal on every subscription the
	// adapter opens.
	AllowInternal bool
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		MaxBodySize:       1 << 20, // 1 MB
		ShutdownTimeout:   30,
		HeartbeatInterval: 15 * time.Second,
	}
}

// NewAdapter creates an HTTP adapter wired to coord. Middleware is applied
// to the turn handler in the given order, outermost first.
func NewAdapter(coord *coordinator.Coordinator, cfg Config, middlewares ...transport.Middleware) *Adapter {
	var handler transport.TurnHandler = &coordinatorHandler{
		coord:         coord,
		heartbeat:     cfg.HeartbeatInterval,
		allowInternal: cfg.AllowInternal,
	}
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}

	a := &Adapter{
		coord:   coord,
		handler: handler,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST /invocations", a.handleInvocation)
	a.mux.HandleFunc("POST /invocation", a.handleInvocation)
	a.mux.HandleFunc("DELETE /invocations/{contextId}", a.handleCancel)
	a.mux.HandleFunc("GET /ping", a.handlePing)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware propagates X-Request-ID from the inbound request
// into the context and back onto the response before the first write.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// invocationBody is the JSON body of POST /invocations: a prompt plus
// arbitrary caller-supplied metadata forwarded to the turn source.
type invocationBody struct {
	Prompt string `json:"prompt"`
}

// handleInvocation handles POST /invocations (and its /invocation alias).
func (a *Adapter) handleInvocation(w http.ResponseWriter, r *http.Request) {
	contextID := r.Header.Get(SessionHeader)
	if contextID == "" {
		contextID = r.Header.Get(SessionHeaderAlias)
	}
	if contextID == "" {
		transport.WriteRuntimeError(w, events.NewClientError("missing session header: "+SessionHeader))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteRuntimeError(w, events.NewClientError("request body too large"))
			return
		}
		transport.WriteRuntimeError(w, events.NewClientError("invalid JSON body: "+err.Error()))
		return
	}

	prompt, _ := raw["prompt"].(string)
	if prompt == "" {
		transport.WriteRuntimeError(w, events.NewClientError("prompt must be non-empty"))
		return
	}
	delete(raw, "prompt")

	req := &transport.TurnRequest{
		ContextID:   contextID,
		Prompt:      prompt,
		Metadata:    raw,
		LastEventID: r.Header.Get(lastEventIDHeader),
	}

	rw := newSSEResponseWriter(w)

	err := a.handler.HandleTurn(r.Context(), req, rw)
	if err == nil {
		return
	}

	var rerr *events.RuntimeError
	if !errors.As(err, &rerr) {
		rerr = &events.RuntimeError{Kind: events.ErrorKindUpstreamStream, Message: err.Error()}
	}

	if rw.hasWritten() {
		// Streaming has already begun; the client has seen SSE headers and
		// possibly events. The coordinator's terminal task-status event
		// already communicated failure; nothing further to write here.
		return
	}

	transport.WriteRuntimeError(w, rerr)
}

// handleCancel handles DELETE /invocations/{contextId}.
func (a *Adapter) handleCancel(w http.ResponseWriter, r *http.Request) {
	contextID := r.PathValue("contextId")
	if contextID == "" {
		transport.WriteRuntimeError(w, events.NewClientError("missing contextId path segment"))
		return
	}
	if a.coord.Cancel(contextID) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	transport.WriteRuntimeError(w, events.NewClientError("no active turn for session "+contextID))
}

// pingResponse is the JSON body of GET /ping.
type pingResponse struct {
	Status           string `json:"status"`
	TimeOfLastUpdate int64  `json:"time_of_last_update"`
}

// handlePing handles GET /ping.
func (a *Adapter) handlePing(w http.ResponseWriter, r *http.Request) {
	status := "Healthy"
	if a.coord.IsBusy() {
		status = "HealthyBusy"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pingResponse{
		Status:           status,
		TimeOfLastUpdate: time.Now().UnixMilli(),
	})
}

// coordinatorHandler is the innermost transport.TurnHandler: it admits a
// turn through the coordinator, subscribes to its event stream (replaying
// since LastEventID when present), and relays buffered events to w until
// the turn reaches a terminal state or the client disconnects.
type coordinatorHandler struct {
	coord         *coordinator.Coordinator
	heartbeat     time.Duration
	allowInternal bool
}

func (h *coordinatorHandler) HandleTurn(ctx context.Context, req *transport.TurnRequest, w transport.ResponseWriter) error {
	if _, rerr := h.coord.StartTurn(ctx, req.ContextID, req.Prompt, req.Metadata); rerr != nil {
		return rerr
	}

	// The transport's static AllowInternal setting is a floor, not a
	// ceiling: a caller whose authenticated identity carries
	// auth.ScopeStreamInternal sees internal events even when the
	// transport otherwise hides them from ordinary subscribers.
	allowInternal := h.allowInternal
	if id := auth.IdentityFromContext(ctx); id.HasScope(auth.ScopeStreamInternal) {
		allowInternal = true
	}

	sub, err := h.coord.Subscribe(req.ContextID, router.Filter{AllowInternal: allowInternal}, req.LastEventID)
	if err != nil {
		return events.NewTransportError(err)
	}
	defer h.coord.Unsubscribe(sub.ID, req.ContextID)

	var tick *time.Ticker
	var tickC <-chan time.Time
	if h.heartbeat > 0 {
		tick = time.NewTicker(h.heartbeat)
		defer tick.Stop()
		tickC = tick.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case be, ok := <-sub.Sink:
			if !ok {
				// Router force-closed the subscription (slow consumer).
				return events.NewSlowSubscriberError(sub.ID)
			}
			if err := w.WriteEvent(ctx, be); err != nil {
				return events.NewTransportError(err)
			}
			if be.Event.Kind == events.KindTaskComplete {
				return nil
			}

		case <-tickC:
			if err := w.WriteHeartbeat(ctx); err != nil {
				return events.NewTransportError(err)
			}
		}
	}
}
