package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// payloadFactory constructs a zero-value payload for a given Kind so
// UnmarshalJSON can decode straight into the concrete type.
type payloadFactory func() any

// schema is the kind-keyed table used for both directions of (de)serialization.
// Kinds that carry no payload (task-created, task-complete, content-complete)
// are intentionally absent: their Payload stays nil.
var schema = map[Kind]payloadFactory{
	KindTaskStatus:      func() any { return &TaskStatusPayload{} },
	KindContentDelta:    func() any { return &ContentDeltaPayload{} },
	KindThoughtStream:   func() any { return &ThoughtPayload{} },
	KindToolCall:        func() any { return &ToolCallPayload{} },
	KindToolResult:      func() any { return &ToolResultPayload{} },
	KindLLMUsage:        func() any { return &UsagePayload{} },
}

// Event is the single envelope crossing the buffer/router/transport
// boundary. Payload holds nil or a pointer to the concrete struct the
// schema table associates with Kind; internal: kinds carry an opaque
// json.RawMessage since their shape is not part of the runtime's contract.
type Event struct {
	Kind      Kind
	ContextID string
	TaskID    string
	Timestamp time.Time
	Payload   any
}

// New builds an Event with the current time. A payload passed by value as
// one of the schema structs is stored as a pointer to a copy, so Payload
// has the same shape as after a JSON round trip. Producers that need a
// specific timestamp (e.g. replaying archived events) should set
// Timestamp directly on the returned value.
func New(kind Kind, contextID, taskID string, payload any) Event {
	switch p := payload.(type) {
	case TaskStatusPayload:
		payload = &p
	case ContentDeltaPayload:
		payload = &p
	case ThoughtPayload:
		payload = &p
	case ToolCallPayload:
		payload = &p
	case ToolResultPayload:
		payload = &p
	case UsagePayload:
		payload = &p
	}
	return Event{
		Kind:      kind,
		ContextID: contextID,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// wireEvent is the JSON-on-the-wire shape.
type wireEvent struct {
	Kind      Kind            `json:"kind"`
	ContextID string          `json:"contextId"`
	TaskID    string          `json:"taskId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON serializes an Event to its wire shape, flattening the
// concrete payload under the "payload" key.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Kind:      e.Kind,
		ContextID: e.ContextID,
		TaskID:    e.TaskID,
		Timestamp: e.Timestamp,
	}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling payload for kind %q: %w", e.Kind, err)
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes an Event, dispatching the payload through
// the kind-keyed schema table. Unknown, non-internal kinds are rejected.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	e.Kind = w.Kind
	e.ContextID = w.ContextID
	e.TaskID = w.TaskID
	e.Timestamp = w.Timestamp
	e.Payload = nil

	if len(w.Payload) == 0 || string(w.Payload) == "null" {
		return nil
	}

	if IsInternal(w.Kind) {
		var raw json.RawMessage
		if err := json.Unmarshal(w.Payload, &raw); err != nil {
			return fmt.Errorf("decoding internal payload: %w", err)
		}
		e.Payload = raw
		return nil
	}

	factory, ok := schema[w.Kind]
	if !ok {
		return fmt.Errorf("unknown event kind %q", w.Kind)
	}

	payload := factory()
	if err := json.Unmarshal(w.Payload, payload); err != nil {
		return fmt.Errorf("decoding payload for kind %q: %w", w.Kind, err)
	}
	e.Payload = payload
	return nil
}
