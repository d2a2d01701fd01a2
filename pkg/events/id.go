package events

import (
	"fmt"
	"strconv"
	"strings"
)

// BufferedEvent pins an Event to the monotonic ID the buffer assigned it.
// Timestamp records when the buffer stored the event; it is independent of
// Event.Timestamp, which reflects when the producer raised it.
type BufferedEvent struct {
	ID        string `json:"id"`
	Event     Event  `json:"event"`
	Timestamp int64  `json:"timestamp"`
}

// NewEventID formats the buffer's canonical per-session event ID:
// "{contextId}-{seq}". seq is 1-based and strictly increasing per session.
func NewEventID(contextID string, seq uint64) string {
	return fmt.Sprintf("%s-%d", contextID, seq)
}

// ParseEventID splits a buffered-event ID back into its contextId and seq.
// contextId may itself contain hyphens, so the split point is the last one;
// ok is false for anything that doesn't end in "-<digits>", which callers
// (notably Last-Event-ID handling) must treat as "malformed, treat as absent"
// per the runtime's resume semantics.
func ParseEventID(id string) (contextID string, seq uint64, ok bool) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 || i == len(id)-1 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(id[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return id[:i], n, true
}
