// Package coordinator is the thin glue that admits at most one active
// turn per session and wires the event buffer, router, and a pluggable
// turn source together.
package coordinator
