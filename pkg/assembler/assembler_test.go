package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

// TestSingleToolCallChunkedArguments covers scenario S1.
func TestSingleToolCallChunkedArguments(t *testing.T) {
	a := New()

	require.Nil(t, a.Ingest(Fragment{Index: 0, ID: strp("call_1"), IDSet: true}))
	require.Nil(t, a.Ingest(Fragment{Index: 0, Name: "get_weather", NameSet: true}))
	require.Nil(t, a.Ingest(Fragment{Index: 0, ArgumentsDelta: `{"location": `}))

	call := a.Ingest(Fragment{Index: 0, ArgumentsDelta: `"San Francisco"}`})
	require.NotNil(t, call)
	assert.Equal(t, 0, call.Index)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "function", call.Type)
	assert.Equal(t, "get_weather", call.Name)
	assert.Equal(t, `{"location": "San Francisco"}`, call.Arguments)

	assert.Empty(t, a.Flush(), "already-emitted slot must not re-emit on flush")
}

// TestInterleavedToolCalls covers scenario S2.
func TestInterleavedToolCalls(t *testing.T) {
	a := New()

	a.Ingest(Fragment{Index: 0, ID: strp("a"), IDSet: true})
	a.Ingest(Fragment{Index: 1, ID: strp("b"), IDSet: true})
	a.Ingest(Fragment{Index: 0, Name: "t0", NameSet: true})
	a.Ingest(Fragment{Index: 1, Name: "t1", NameSet: true})
	a.Ingest(Fragment{Index: 0, ArgumentsDelta: `{"k":`})
	a.Ingest(Fragment{Index: 1, ArgumentsDelta: `{"v":`})
	call0 := a.Ingest(Fragment{Index: 0, ArgumentsDelta: ` "a"}`})
	call1 := a.Ingest(Fragment{Index: 1, ArgumentsDelta: ` "b"}`})

	require.NotNil(t, call0)
	require.NotNil(t, call1)
	assert.Equal(t, `{"k": "a"}`, call0.Arguments)
	assert.Equal(t, `{"v": "b"}`, call1.Arguments)
}

// TestIncompleteToolCallDiscarded covers scenario S5.
func TestIncompleteToolCallDiscarded(t *testing.T) {
	a := New()

	a.Ingest(Fragment{Index: 0, ID: strp("c1"), IDSet: true, Name: "f", NameSet: true})
	a.Ingest(Fragment{Index: 0, ArgumentsDelta: `{"incomplete":`})

	flushed := a.Flush()
	assert.Empty(t, flushed)
}

func TestEachSlotEmitsAtMostOnce(t *testing.T) {
	a := New()
	a.Ingest(Fragment{Index: 0, Name: "f", NameSet: true})
	first := a.Ingest(Fragment{Index: 0, ArgumentsDelta: `{}`})
	require.NotNil(t, first)

	// Further fragments at the same index must never re-trigger emission.
	second := a.Ingest(Fragment{Index: 0, ArgumentsDelta: `{}`})
	assert.Nil(t, second)
	assert.Empty(t, a.Flush())
}

func TestExplicitNullIDOverridesPreviousValue(t *testing.T) {
	a := New()
	a.Ingest(Fragment{Index: 0, ID: strp("first"), IDSet: true})
	call := a.Ingest(Fragment{Index: 0, ID: nil, IDSet: true, Name: "f", NameSet: true, ArgumentsDelta: `{}`})
	require.NotNil(t, call)
	assert.Empty(t, call.ID)
}

func TestTypeDefaultsToFunction(t *testing.T) {
	a := New()
	call := a.Ingest(Fragment{Index: 0, Name: "f", NameSet: true, ArgumentsDelta: `{}`})
	require.NotNil(t, call)
	assert.Equal(t, "function", call.Type)
}

func TestMalformedArgumentsNeverEmit(t *testing.T) {
	a := New()
	a.Ingest(Fragment{Index: 0, Name: "f", NameSet: true})
	got := a.Ingest(Fragment{Index: 0, ArgumentsDelta: `{not valid json`})
	assert.Nil(t, got)
	assert.Empty(t, a.Flush())
}
