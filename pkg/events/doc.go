// Package events defines the canonical event envelope delivered by the
// buffer, router, and SSE transport: the Kind-discriminated Event, the
// BufferedEvent wrapper that pins an Event to a monotonic per-session ID,
// and the error taxonomy surfaced at the edges of the runtime.
package events
