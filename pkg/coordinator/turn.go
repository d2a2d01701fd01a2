package coordinator

import (
	"context"

	"github.com/agentrt/streamrt/pkg/events"
)

// Emit appends an event of kind to the turn's stream. payload must match
// whatever the kind's schema expects (nil for the lifecycle kinds that
// carry none).
type Emit func(kind events.Kind, payload any)

// TurnSource produces the agent's event sequence for one turn. Run
// blocks until the turn completes, fails, or ctx is cancelled; it must
// call emit for every event it produces, in order, and must not call
// emit after returning. Run's own return value only distinguishes
// success from upstream failure — emit is the only way content ever
// reaches a session.
type TurnSource interface {
	Run(ctx context.Context, contextID, taskID, prompt string, metadata map[string]any, emit Emit) error
}

// TurnSourceFunc adapts a function to a TurnSource.
type TurnSourceFunc func(ctx context.Context, contextID, taskID, prompt string, metadata map[string]any, emit Emit) error

func (f TurnSourceFunc) Run(ctx context.Context, contextID, taskID, prompt string, metadata map[string]any, emit Emit) error {
	return f(ctx, contextID, taskID, prompt, metadata, emit)
}
