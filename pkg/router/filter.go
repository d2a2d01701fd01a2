package router

import "github.com/agentrt/streamrt/pkg/events"

// Filter narrows a subscription to a subset of a session's events. The
// zero value matches every non-internal event for the session.
type Filter struct {
	TaskID        string
	IncludeKinds  []events.Kind
	ExcludeKinds  []events.Kind
	AllowInternal bool
}

// Matches applies the filter evaluation order: taskId, internal-prefix
// gating, includeKinds, excludeKinds. ContextId matching is the caller's
// responsibility since subscriptions are already partitioned by session.
func (f Filter) Matches(ev events.Event) bool {
	if f.TaskID != "" && ev.TaskID != f.TaskID {
		return false
	}
	if events.IsInternal(ev.Kind) && !f.AllowInternal {
		return false
	}
	if len(f.IncludeKinds) > 0 && !containsKind(f.IncludeKinds, ev.Kind) {
		return false
	}
	if len(f.ExcludeKinds) > 0 && containsKind(f.ExcludeKinds, ev.Kind) {
		return false
	}
	return true
}

func containsKind(kinds []events.Kind, k events.Kind) bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}
