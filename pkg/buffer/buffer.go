package buffer

import (
	"sync"
	"time"

	"github.com/agentrt/streamrt/pkg/events"
	"github.com/agentrt/streamrt/pkg/observability"
)

// Defaults mirror the configuration keys named in the runtime's external
// interface: buffer.maxSize, buffer.ttl, buffer.cleanupInterval.
const (
	DefaultMaxSize         = 1000
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 60 * time.Second
)

// Config controls per-session retention.
type Config struct {
	MaxSize         int
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns the runtime's documented defaults.
func DefaultConfig() Config {
	return Config{MaxSize: DefaultMaxSize, TTL: DefaultTTL, CleanupInterval: DefaultCleanupInterval}
}

// sessionLog is one session's ring buffer. seq and events are guarded
// together so Add/GetEventsSince never observe a torn state.
type sessionLog struct {
	mu        sync.Mutex
	seq       uint64
	events    []events.BufferedEvent
	updatedAt time.Time
}

// Buffer is the process-wide event buffer, partitioned by contextId so
// cross-session traffic never contends on the same lock.
type Buffer struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	cfg      Config
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Buffer. Zero-value fields in cfg fall back to defaults.
func New(cfg Config) *Buffer {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	return &Buffer{
		sessions: make(map[string]*sessionLog),
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
}

func (b *Buffer) getOrCreate(contextID string) *sessionLog {
	b.mu.RLock()
	sl, ok := b.sessions[contextID]
	b.mu.RUnlock()
	if ok {
		return sl
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if sl, ok := b.sessions[contextID]; ok {
		return sl
	}
	sl = &sessionLog{updatedAt: time.Now()}
	b.sessions[contextID] = sl
	return sl
}

// Add allocates the next seq for contextID, stores the event, and returns
// its buffered-event ID. Oldest events are dropped once the session
// exceeds maxSize.
func (b *Buffer) Add(contextID string, ev events.Event) string {
	sl := b.getOrCreate(contextID)

	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.seq++
	id := events.NewEventID(contextID, sl.seq)
	now := time.Now()
	sl.events = append(sl.events, events.BufferedEvent{ID: id, Event: ev, Timestamp: now.UnixMilli()})
	observability.BufferedEventsActive.Inc()

	if b.cfg.MaxSize > 0 && len(sl.events) > b.cfg.MaxSize {
		evicted := len(sl.events) - b.cfg.MaxSize
		sl.events = sl.events[evicted:]
		observability.BufferedEventsActive.Sub(float64(evicted))
	}
	sl.updatedAt = now

	return id
}

// GetEventsSince returns all events with seq greater than the seq encoded
// in eventID, in order. An eventID that is malformed, from a different
// session, or predates the retained window returns an empty slice: the
// caller falls back to treating the subscriber as brand new.
func (b *Buffer) GetEventsSince(contextID, eventID string) []events.BufferedEvent {
	ctxFromID, seq, ok := events.ParseEventID(eventID)
	if !ok || ctxFromID != contextID {
		return nil
	}

	b.mu.RLock()
	sl, exists := b.sessions[contextID]
	b.mu.RUnlock()
	if !exists {
		return nil
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	for i, be := range sl.events {
		if _, s, valid := events.ParseEventID(be.ID); valid && s == seq {
			out := make([]events.BufferedEvent, len(sl.events)-i-1)
			copy(out, sl.events[i+1:])
			return out
		}
	}
	return nil
}

// GetAll returns every currently retained event for contextID, in order.
func (b *Buffer) GetAll(contextID string) []events.BufferedEvent {
	b.mu.RLock()
	sl, exists := b.sessions[contextID]
	b.mu.RUnlock()
	if !exists {
		return nil
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	out := make([]events.BufferedEvent, len(sl.events))
	copy(out, sl.events)
	return out
}

// Clear discards a session's entire log, e.g. on explicit session teardown.
func (b *Buffer) Clear(contextID string) {
	b.mu.Lock()
	sl, ok := b.sessions[contextID]
	delete(b.sessions, contextID)
	b.mu.Unlock()

	if ok {
		sl.mu.Lock()
		n := len(sl.events)
		sl.mu.Unlock()
		observability.BufferedEventsActive.Sub(float64(n))
	}
}

// Cleanup evicts events older than TTL across all sessions. It is
// idempotent and safe to call synchronously from tests in addition to the
// background sweep goroutine.
func (b *Buffer) Cleanup() {
	cutoff := time.Now().Add(-b.cfg.TTL)

	b.mu.RLock()
	logs := make([]*sessionLog, 0, len(b.sessions))
	for _, sl := range b.sessions {
		logs = append(logs, sl)
	}
	b.mu.RUnlock()

	for _, sl := range logs {
		sl.mu.Lock()
		i := 0
		for i < len(sl.events) && time.UnixMilli(sl.events[i].Timestamp).Before(cutoff) {
			i++
		}
		if i > 0 {
			sl.events = sl.events[i:]
			observability.BufferedEventsActive.Sub(float64(i))
		}
		sl.mu.Unlock()
	}
}

// StartSweep launches the background TTL sweep goroutine, ticking every
// CleanupInterval until Shutdown is called.
func (b *Buffer) StartSweep() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.Cleanup()
			case <-b.stop:
				return
			}
		}
	}()
}

// Shutdown stops the background sweep and waits for it to exit.
func (b *Buffer) Shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })
	b.wg.Wait()
}
