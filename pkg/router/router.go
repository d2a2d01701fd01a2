package router

import (
	"sync"

	"github.com/agentrt/streamrt/pkg/events"
	"github.com/agentrt/streamrt/pkg/observability"
	"github.com/google/uuid"
)

// DefaultQueueCap is the subscriber queue's drop-slow threshold
// (session.subscriberQueueCap).
const DefaultQueueCap = 256

// Subscription is a filtered view over one session's event stream. Sink
// is the subscriber's bounded delivery channel; callers range over it to
// drive an SSE response or any other consumer.
type Subscription struct {
	ID        string
	ContextID string
	Filter    Filter
	Sink      chan events.BufferedEvent
}

type sessionSubs struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// Router maps contextId to the set of active subscriptions and dispatches
// buffered events to the ones whose filter matches.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]*sessionSubs
}

// New creates an empty Router.
func New() *Router {
	return &Router{sessions: make(map[string]*sessionSubs)}
}

func (r *Router) getOrCreate(contextID string) *sessionSubs {
	r.mu.RLock()
	ss, ok := r.sessions[contextID]
	r.mu.RUnlock()
	if ok {
		return ss
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ss, ok := r.sessions[contextID]; ok {
		return ss
	}
	ss = &sessionSubs{subs: make(map[string]*Subscription)}
	r.sessions[contextID] = ss
	return ss
}

// Subscribe registers a new subscription for contextID and returns it.
// queueCap <= 0 falls back to DefaultQueueCap.
func (r *Router) Subscribe(contextID string, filter Filter, queueCap int) *Subscription {
	if queueCap <= 0 {
		queueCap = DefaultQueueCap
	}

	sub := &Subscription{
		ID:        uuid.NewString(),
		ContextID: contextID,
		Filter:    filter,
		Sink:      make(chan events.BufferedEvent, queueCap),
	}

	ss := r.getOrCreate(contextID)
	ss.mu.Lock()
	ss.subs[sub.ID] = sub
	ss.mu.Unlock()

	observability.SubscriptionsActive.Inc()

	return sub
}

// Unsubscribe removes a subscription and closes its sink. Safe to call
// more than once; a closed sink is removed opportunistically by Route
// as well, so this tolerates racing with a drop-on-full eviction.
func (r *Router) Unsubscribe(subscriptionID, contextID string) {
	r.mu.RLock()
	ss, ok := r.sessions[contextID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if sub, ok := ss.subs[subscriptionID]; ok {
		delete(ss.subs, subscriptionID)
		close(sub.Sink)
		observability.SubscriptionsActive.Dec()
	}
}

// Route delivers a buffered event to every matching subscription for
// contextID and returns the count of successful deliveries. Each send is
// non-blocking: a subscription whose sink is full is treated as slow,
// force-closed, and removed, never blocking the producer or other
// subscribers.
func (r *Router) Route(contextID string, be events.BufferedEvent) int {
	r.mu.RLock()
	ss, ok := r.sessions[contextID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	delivered := 0
	for id, sub := range ss.subs {
		if !sub.Filter.Matches(be.Event) {
			continue
		}
		select {
		case sub.Sink <- be:
			delivered++
		default:
			delete(ss.subs, id)
			close(sub.Sink)
			observability.SubscriptionsActive.Dec()
			observability.SlowSubscriberDisconnectsTotal.Inc()
		}
	}
	return delivered
}

// Clear unsubscribes every subscription across every session, e.g. on
// server shutdown.
func (r *Router) Clear() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*sessionSubs)
	r.mu.Unlock()

	for _, ss := range sessions {
		ss.mu.Lock()
		for id, sub := range ss.subs {
			delete(ss.subs, id)
			close(sub.Sink)
			observability.SubscriptionsActive.Dec()
		}
		ss.mu.Unlock()
	}
}

// Stats summarizes router occupancy for telemetry.
type Stats struct {
	TotalSessions     int
	SubscribersPerCtx map[string]int
}

// GetStats snapshots subscriber counts per session.
func (r *Router) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{SubscribersPerCtx: make(map[string]int, len(r.sessions))}
	for contextID, ss := range r.sessions {
		ss.mu.Lock()
		stats.SubscribersPerCtx[contextID] = len(ss.subs)
		ss.mu.Unlock()
	}
	stats.TotalSessions = len(stats.SubscribersPerCtx)
	return stats
}
