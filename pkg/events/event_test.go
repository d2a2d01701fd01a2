package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	orig := Event{
		Kind:      KindContentDelta,
		ContextID: "ctx-1",
		TaskID:    "task-1",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload:   &ContentDeltaPayload{Delta: "hello\nworld"},
	}

	raw, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\n\"", "newline inside delta must be JSON-escaped, never a bare newline")

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, orig.Kind, got.Kind)
	assert.Equal(t, orig.ContextID, got.ContextID)
	assert.Equal(t, orig.TaskID, got.TaskID)
	assert.True(t, orig.Timestamp.Equal(got.Timestamp))
	require.IsType(t, &ContentDeltaPayload{}, got.Payload)
	assert.Equal(t, "hello\nworld", got.Payload.(*ContentDeltaPayload).Delta)
}

func TestEventNoPayload(t *testing.T) {
	orig := New(KindTaskCreated, "ctx-1", "task-1", nil)
	raw, err := json.Marshal(orig)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Nil(t, got.Payload)
	assert.Equal(t, KindTaskCreated, got.Kind)
}

func TestEventUnknownKindRejected(t *testing.T) {
	raw := []byte(`{"kind":"bogus","contextId":"c","taskId":"t","timestamp":"2026-01-01T00:00:00Z","payload":{}}`)
	var got Event
	err := json.Unmarshal(raw, &got)
	assert.Error(t, err)
}

func TestEventInternalKindKeepsRawPayload(t *testing.T) {
	raw := []byte(`{"kind":"internal:debug","contextId":"c","taskId":"t","timestamp":"2026-01-01T00:00:00Z","payload":{"foo":"bar"}}`)
	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.True(t, IsInternal(got.Kind))
	require.IsType(t, json.RawMessage{}, got.Payload)
}

func TestNewEventIDAndParse(t *testing.T) {
	id := NewEventID("ctx-with-hyphens", 42)
	assert.Equal(t, "ctx-with-hyphens-42", id)

	ctx, seq, ok := ParseEventID(id)
	require.True(t, ok)
	assert.Equal(t, "ctx-with-hyphens", ctx)
	assert.Equal(t, uint64(42), seq)
}

func TestParseEventIDMalformed(t *testing.T) {
	for _, id := range []string{"", "no-trailing-number-", "justtext", "-5"} {
		_, _, ok := ParseEventID(id)
		assert.Falsef(t, ok, "expected %q to be malformed", id)
	}
}

func TestRuntimeErrorHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, NewClientError("bad").HTTPStatus())
	assert.Equal(t, 409, NewSessionConflictError("ctx").HTTPStatus())
	assert.Equal(t, 500, NewUpstreamStreamError(nil).HTTPStatus())
}
