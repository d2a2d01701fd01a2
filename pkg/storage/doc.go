// Package storage provides the Archiver contract shared by the runtime's
// durable sinks plus the sentinel errors and tenant-context helpers they
// use. An Archiver mirrors a session's buffered events past the event
// buffer's in-memory retention window; it is a best-effort persistence
// collaborator, not a replay source (SSE reconnection only ever replays
// from the live buffer).
//
// Archiver implementations (memory, postgres) live in their own
// subpackages; this package holds only the shared interface and helpers.
package storage

import (
	"context"

	"github.com/agentrt/streamrt/pkg/events"
)

// Archiver mirrors buffered events to a durable store as they are
// routed, and answers "give me everything archived for this session" for
// offline inspection or audit. Implementations must not be used as a
// replay source for SSE resume: that contract belongs to the event
// buffer alone.
type Archiver interface {
	// Append mirrors one buffered event. Called from the coordinator's
	// emit path, after the event has already reached the buffer and
	// router; a failure here must never block or fail turn delivery.
	Append(ctx context.Context, be events.BufferedEvent) error

	// Events returns every archived event for contextID, oldest first.
	Events(ctx context.Context, contextID string) ([]events.BufferedEvent, error)

	// Close releases any resources the archiver holds (connections,
	// background goroutines).
	Close() error
}
