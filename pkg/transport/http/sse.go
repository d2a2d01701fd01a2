package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/agentrt/streamrt/pkg/events"
	"github.com/agentrt/streamrt/pkg/transport"
)

// writerState tracks the lifecycle of an SSE ResponseWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet.
	writerStreaming                    // At least one event or heartbeat has been written.
	writerClosed                       // The underlying connection is gone.
)

// sseResponseWriter implements transport.ResponseWriter over an
// http.ResponseWriter, framing each buffered event as:
//
//	id: {eventId}\n
//	event: {kind}\n
//	data: {json-encoded event}\n\n
//
// Heartbeats are off-the-record comment lines and carry neither id nor
// buffer entry.
type sseResponseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.ResponseWriter = (*sseResponseWriter)(nil)

// newSSEResponseWriter creates a ResponseWriter wrapping w and sets the SSE
// response headers immediately, so the client begins receiving the stream
// even before the first event.
func newSSEResponseWriter(w http.ResponseWriter) *sseResponseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &sseResponseWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteEvent frames and sends one buffered event.
func (s *sseResponseWriter) WriteEvent(ctx context.Context, be events.BufferedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerClosed {
		return errors.New("cannot write event: connection closed")
	}
	s.state = writerStreaming

	data, err := json.Marshal(be.Event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", be.ID, be.Event.Kind, data); err != nil {
		s.state = writerClosed
		return fmt.Errorf("write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		s.state = writerClosed
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// WriteHeartbeat sends an off-the-record comment line, carrying no buffer
// entry and no id.
func (s *sseResponseWriter) WriteHeartbeat(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerClosed {
		return errors.New("cannot write heartbeat: connection closed")
	}
	s.state = writerStreaming

	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		s.state = writerClosed
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return s.rc.Flush()
}

// Flush ensures buffered data reaches the client immediately.
func (s *sseResponseWriter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rc.Flush()
}

// hasWritten reports whether any event or heartbeat has been written yet.
func (s *sseResponseWriter) hasWritten() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}
