package router

import (
	"testing"

	"github.com/agentrt/streamrt/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func be(seq int, kind events.Kind, taskID string) events.BufferedEvent {
	return events.BufferedEvent{
		ID:    events.NewEventID("ctx-1", uint64(seq)),
		Event: events.Event{Kind: kind, ContextID: "ctx-1", TaskID: taskID},
	}
}

func TestRouteDeliversToMatchingSubscription(t *testing.T) {
	r := New()
	sub := r.Subscribe("ctx-1", Filter{}, 10)

	n := r.Route("ctx-1", be(1, events.KindContentDelta, "task-1"))
	assert.Equal(t, 1, n)

	select {
	case got := <-sub.Sink:
		assert.Equal(t, "ctx-1-1", got.ID)
	default:
		t.Fatal("expected delivery")
	}
}

func TestFilterByTaskID(t *testing.T) {
	r := New()
	r.Subscribe("ctx-1", Filter{TaskID: "task-2"}, 10)

	n := r.Route("ctx-1", be(1, events.KindContentDelta, "task-1"))
	assert.Equal(t, 0, n)
}

func TestInternalEventsRequireAllowInternal(t *testing.T) {
	r := New()
	blocked := r.Subscribe("ctx-1", Filter{}, 10)
	allowed := r.Subscribe("ctx-1", Filter{AllowInternal: true}, 10)

	n := r.Route("ctx-1", be(1, "internal:debug", "task-1"))
	assert.Equal(t, 1, n)

	select {
	case <-blocked.Sink:
		t.Fatal("internal event must not reach a subscriber without AllowInternal")
	default:
	}
	select {
	case <-allowed.Sink:
	default:
		t.Fatal("expected internal event delivered to allow-internal subscriber")
	}
}

func TestIncludeExcludeKinds(t *testing.T) {
	r := New()
	includeOnly := r.Subscribe("ctx-1", Filter{IncludeKinds: []events.Kind{events.KindToolCall}}, 10)
	excluding := r.Subscribe("ctx-1", Filter{ExcludeKinds: []events.Kind{events.KindToolCall}}, 10)

	r.Route("ctx-1", be(1, events.KindToolCall, "task-1"))

	select {
	case <-includeOnly.Sink:
	default:
		t.Fatal("include filter should have matched tool-call")
	}
	select {
	case <-excluding.Sink:
		t.Fatal("exclude filter should have blocked tool-call")
	default:
	}
}

func TestSlowSubscriberDroppedOnFullQueue(t *testing.T) {
	r := New()
	sub := r.Subscribe("ctx-1", Filter{}, 1)

	r.Route("ctx-1", be(1, events.KindContentDelta, "task-1")) // fills queue
	n := r.Route("ctx-1", be(2, events.KindContentDelta, "task-1"))
	assert.Equal(t, 0, n, "second delivery should drop the full subscriber instead of blocking")

	_, open := <-sub.Sink
	require.True(t, open, "first buffered message should still be readable")

	stats := r.GetStats()
	assert.Equal(t, 0, stats.SubscribersPerCtx["ctx-1"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := New()
	sub := r.Subscribe("ctx-1", Filter{}, 10)
	r.Unsubscribe(sub.ID, "ctx-1")

	n := r.Route("ctx-1", be(1, events.KindContentDelta, "task-1"))
	assert.Equal(t, 0, n)
}

func TestOneSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	r := New()
	slow := r.Subscribe("ctx-1", Filter{}, 1)
	fast := r.Subscribe("ctx-1", Filter{}, 10)

	r.Route("ctx-1", be(1, events.KindContentDelta, "task-1"))
	n := r.Route("ctx-1", be(2, events.KindContentDelta, "task-1"))

	assert.Equal(t, 1, n, "fast subscriber must still receive even though slow one was dropped")
	_ = slow
	assert.Len(t, fast.Sink, 2)
}

func TestGetStats(t *testing.T) {
	r := New()
	r.Subscribe("ctx-1", Filter{}, 10)
	r.Subscribe("ctx-1", Filter{}, 10)
	r.Subscribe("ctx-2", Filter{}, 10)

	stats := r.GetStats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 2, stats.SubscribersPerCtx["ctx-1"])
	assert.Equal(t, 1, stats.SubscribersPerCtx["ctx-2"])
}
