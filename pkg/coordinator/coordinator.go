package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentrt/streamrt/pkg/buffer"
	"github.com/agentrt/streamrt/pkg/events"
	"github.com/agentrt/streamrt/pkg/observability"
	"github.com/agentrt/streamrt/pkg/router"
	"github.com/agentrt/streamrt/pkg/storage"
)

// DefaultIdleTTL is how long a session may sit with no turn activity and
// no touch from Subscribe before ReapIdle reclaims its buffer and
// bookkeeping (session.idleTtl).
const DefaultIdleTTL = 30 * time.Minute

// Config controls coordinator behavior.
type Config struct {
	// SubscriberQueueCap is the default bounded-channel capacity given to
	// new subscriptions. Zero uses router.DefaultQueueCap.
	SubscriberQueueCap int

	// Archiver, if set, receives a best-effort async mirror of every
	// emitted event. A slow or failing archiver never blocks or fails
	// turn delivery.
	Archiver storage.Archiver

	// ArchiveTimeout bounds each archiver.Append call. Zero uses 5s.
	ArchiveTimeout time.Duration

	// IdleTTL is how long a session may go untouched before ReapIdle
	// reclaims it. Zero uses DefaultIdleTTL.
	IdleTTL time.Duration

	// IdleSweepInterval controls how often StartIdleReaper's background
	// ticker calls ReapIdle. Zero uses IdleTTL/4, floored at one second.
	IdleSweepInterval time.Duration
}

// activeTurn tracks the one in-flight turn a session may have.
type activeTurn struct {
	taskID string
	cancel context.CancelFunc
}

// Coordinator admits at most one active turn per session and wires a
// TurnSource's emitted events through the buffer and router. It owns no
// transport; SSE handlers subscribe through it and read buffered
// replay plus live delivery.
type Coordinator struct {
	buf      *buffer.Buffer
	router   *router.Router
	source   TurnSource
	cfg      Config
	archiver storage.Archiver

	mu         sync.Mutex
	turns      map[string]*activeTurn
	touched    map[string]time.Time
	sessionMus map[string]*sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Coordinator. buf and rtr must not be nil; source may be
// nil until SetTurnSource is called (useful for tests that only drive
// Emit/subscribe paths directly).
func New(buf *buffer.Buffer, rtr *router.Router, source TurnSource, cfg Config) *Coordinator {
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = 5 * time.Second
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.IdleSweepInterval <= 0 {
		cfg.IdleSweepInterval = cfg.IdleTTL / 4
		if cfg.IdleSweepInterval < time.Second {
			cfg.IdleSweepInterval = time.Second
		}
	}
	return &Coordinator{
		buf:        buf,
		router:     rtr,
		source:     source,
		cfg:        cfg,
		archiver:   cfg.Archiver,
		turns:      make(map[string]*activeTurn),
		touched:    make(map[string]time.Time),
		sessionMus: make(map[string]*sync.Mutex),
		stop:       make(chan struct{}),
	}
}

// sessionLock returns the per-contextID mutex serializing emit against
// Subscribe for that session, creating it on first use. Adds/routes for
// one session never contend with adds/routes for another: only the brief
// get-or-create below is process-wide.
func (c *Coordinator) sessionLock(contextID string) *sync.Mutex {
	c.mu.Lock()
	l, ok := c.sessionMus[contextID]
	if !ok {
		l = &sync.Mutex{}
		c.sessionMus[contextID] = l
	}
	c.mu.Unlock()
	return l
}

func (c *Coordinator) touch(contextID string) {
	c.mu.Lock()
	c.touched[contextID] = time.Now()
	c.mu.Unlock()
}

// SetTurnSource wires (or replaces) the turn source after construction.
func (c *Coordinator) SetTurnSource(source TurnSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = source
}

// StartTurn admits a new turn for contextID if none is active, and runs
// it asynchronously. It returns the new taskID immediately; the turn's
// events arrive through the buffer/router as they are produced.
func (c *Coordinator) StartTurn(ctx context.Context, contextID, prompt string, metadata map[string]any) (string, *events.RuntimeError) {
	if contextID == "" {
		return "", events.NewClientError("contextId must not be empty")
	}
	if prompt == "" {
		return "", events.NewClientError("prompt must not be empty")
	}

	c.mu.Lock()
	if _, busy := c.turns[contextID]; busy {
		c.mu.Unlock()
		return "", events.NewSessionConflictError(contextID)
	}
	if c.source == nil {
		c.mu.Unlock()
		return "", &events.RuntimeError{Kind: events.ErrorKindClient, Message: "no turn source configured"}
	}

	taskID := uuid.NewString()
	turnCtx, cancel := context.WithCancel(ctx)
	c.turns[contextID] = &activeTurn{taskID: taskID, cancel: cancel}
	c.touched[contextID] = time.Now()
	c.mu.Unlock()

	c.emit(contextID, taskID, events.KindTaskCreated, nil)
	c.emit(contextID, taskID, events.KindTaskStatus, events.TaskStatusPayload{Status: events.TaskWorking})

	go c.runTurn(turnCtx, contextID, taskID, prompt, metadata)

	return taskID, nil
}

func (c *Coordinator) runTurn(ctx context.Context, contextID, taskID, prompt string, metadata map[string]any) {
	start := time.Now()
	emit := func(kind events.Kind, payload any) {
		c.emit(contextID, taskID, kind, payload)
	}

	err := c.source.Run(ctx, contextID, taskID, prompt, metadata, emit)

	final := events.TaskCompleted
	var errPayload *events.ErrorPayload
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		final = events.TaskCanceled
	case err != nil:
		final = events.TaskFailed
		errPayload = &events.ErrorPayload{Message: err.Error()}
		slog.Warn("turn failed", "contextId", contextID, "taskId", taskID, "error", err)
	}

	observability.TurnsTotal.WithLabelValues(string(final)).Inc()
	observability.TurnDuration.Observe(time.Since(start).Seconds())

	c.emit(contextID, taskID, events.KindTaskStatus, events.TaskStatusPayload{Status: final, Error: errPayload})
	c.emit(contextID, taskID, events.KindTaskComplete, nil)

	c.mu.Lock()
	if t, ok := c.turns[contextID]; ok && t.taskID == taskID {
		delete(c.turns, contextID)
	}
	c.mu.Unlock()
}

// emit assigns a buffer id and routes the event to matching subscribers.
// The add-then-route pair is atomic with respect to Subscribe's own
// subscribe-then-replay pair for the same contextID: both hold the
// session's lock across their full sequence, so a reconnecting
// subscriber can never see an event in both its replay batch and a live
// delivery, and can never miss one sitting in the gap between the two
// steps.
func (c *Coordinator) emit(contextID, taskID string, kind events.Kind, payload any) {
	sl := c.sessionLock(contextID)
	sl.Lock()
	ev := events.New(kind, contextID, taskID, payload)
	id := c.buf.Add(contextID, ev)
	be := events.BufferedEvent{ID: id, Event: ev, Timestamp: time.Now().UnixMilli()}
	c.router.Route(contextID, be)
	sl.Unlock()

	c.touch(contextID)
	observability.EventsEmittedTotal.WithLabelValues(string(kind)).Inc()

	if c.archiver != nil {
		go c.archive(be)
	}
}

// archive mirrors be into the configured archiver, best-effort. Failures
// are logged, never surfaced to the turn or its subscribers.
func (c *Coordinator) archive(be events.BufferedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ArchiveTimeout)
	defer cancel()
	if err := c.archiver.Append(ctx, be); err != nil {
		slog.Warn("archiving event failed", "contextId", be.Event.ContextID, "eventId", be.ID, "error", err)
	}
}

// ReapIdle clears every session that has gone untouched (no StartTurn,
// emit, or Subscribe) for longer than IdleTTL and has no active turn,
// per spec.md §3's "destroyed when idle beyond session TTL." Idempotent
// and safe to call synchronously from tests in addition to the
// background sweep started by StartIdleReaper. Returns the contextIDs
// reaped.
func (c *Coordinator) ReapIdle() []string {
	cutoff := time.Now().Add(-c.cfg.IdleTTL)

	c.mu.Lock()
	var stale []string
	for contextID, at := range c.touched {
		if _, busy := c.turns[contextID]; busy {
			continue
		}
		if at.Before(cutoff) {
			stale = append(stale, contextID)
		}
	}
	for _, contextID := range stale {
		delete(c.touched, contextID)
		delete(c.sessionMus, contextID)
	}
	c.mu.Unlock()

	for _, contextID := range stale {
		c.buf.Clear(contextID)
	}
	return stale
}

// StartIdleReaper launches the background idle-session sweep, ticking
// every IdleSweepInterval until Shutdown is called.
func (c *Coordinator) StartIdleReaper() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.IdleSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if reaped := c.ReapIdle(); len(reaped) > 0 {
					slog.Debug("reaped idle sessions", "count", len(reaped))
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Shutdown stops the background idle reaper and waits for it to exit.
func (c *Coordinator) Shutdown() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// Cancel cancels contextID's active turn, if any. Returns true if a turn
// was found and cancelled.
func (c *Coordinator) Cancel(contextID string) bool {
	c.mu.Lock()
	t, ok := c.turns[contextID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// IsBusy reports whether any session currently has an active turn.
func (c *Coordinator) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns) > 0
}

// Subscribe registers a subscription for contextID and, if lastEventID
// is non-empty, replays buffered events with a higher seq before the
// subscription starts observing new deliveries. The replay is written
// directly to the returned subscription's sink before this function
// returns, so callers must start reading the sink promptly.
//
// Subscribe and emit hold the same per-session lock across their full
// register-then-replay / add-then-route sequences, so an event emitted
// concurrently with a reconnect is delivered exactly once: either it
// lands in this replay batch (emit ran first) or it is routed live to
// the subscription registered here (Subscribe ran first), never both.
func (c *Coordinator) Subscribe(contextID string, filter router.Filter, lastEventID string) (*router.Subscription, error) {
	sl := c.sessionLock(contextID)
	sl.Lock()
	defer sl.Unlock()

	queueCap := c.cfg.SubscriberQueueCap
	sub := c.router.Subscribe(contextID, filter, queueCap)

	var replay []events.BufferedEvent
	if lastEventID != "" {
		replay = c.buf.GetEventsSince(contextID, lastEventID)
	}
	for _, be := range replay {
		if !filter.Matches(be.Event) {
			continue
		}
		select {
		case sub.Sink <- be:
		default:
			return sub, fmt.Errorf("coordinator: replay overflowed subscriber %s queue", sub.ID)
		}
	}

	c.touch(contextID)
	return sub, nil
}

// Unsubscribe removes a subscription.
func (c *Coordinator) Unsubscribe(subscriptionID, contextID string) {
	c.router.Unsubscribe(subscriptionID, contextID)
}
