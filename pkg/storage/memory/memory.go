// Package memory provides an in-memory storage.Archiver for testing and
// lightweight deployments. Archived events are lost when the process
// restarts. Optional LRU eviction at session granularity limits memory
// usage under many sessions.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/agentrt/streamrt/pkg/events"
	"github.com/agentrt/streamrt/pkg/storage"
)

// session holds one context's archived event log.
type session struct {
	contextID string
	events    []events.BufferedEvent
	seen      map[string]bool // buffered-event IDs already appended
	lruElem   *list.Element
}

// Store is an in-memory Archiver with optional LRU eviction of whole
// sessions once maxSessions is exceeded.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	lruList     *list.List // front = most recently touched, back = least
	maxSessions int        // 0 = unlimited
}

var _ storage.Archiver = (*Store)(nil)

// New creates an in-memory archiver. If maxSessions is 0, the store
// retains every session touched. If maxSessions > 0, the least recently
// touched session is evicted whole when a new session would exceed it.
func New(maxSessions int) *Store {
	return &Store{
		sessions:    make(map[string]*session),
		lruList:     list.New(),
		maxSessions: maxSessions,
	}
}

// Append mirrors a buffered event into contextID's archived log. It is
// idempotent per buffered-event ID: mirroring the same event twice
// (e.g. after an upstream retry) is silently deduplicated rather than
// treated as an error, since the archiver is best-effort and producers
// never need to track what they already mirrored.
func (s *Store) Append(_ context.Context, be events.BufferedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[be.Event.ContextID]
	if !ok {
		if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
			s.evictOldest()
		}
		sess = &session{contextID: be.Event.ContextID, seen: make(map[string]bool)}
		sess.lruElem = s.lruList.PushFront(sess)
		s.sessions[be.Event.ContextID] = sess
	} else {
		s.lruList.MoveToFront(sess.lruElem)
	}

	if sess.seen[be.ID] {
		return nil
	}
	sess.seen[be.ID] = true
	sess.events = append(sess.events, be)
	return nil
}

// Events returns every archived event for contextID, oldest first.
func (s *Store) Events(_ context.Context, contextID string) ([]events.BufferedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[contextID]
	if !ok {
		return nil, nil
	}
	out := make([]events.BufferedEvent, len(sess.events))
	copy(out, sess.events)
	return out, nil
}

// Close is a no-op for the in-memory archiver.
func (s *Store) Close() error { return nil }

// evictOldest removes the least recently touched session. Must be
// called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	sess := back.Value.(*session)
	s.lruList.Remove(back)
	delete(s.sessions, sess.contextID)
}
