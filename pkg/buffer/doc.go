// Package buffer implements the per-session ring buffer of recent events:
// monotonic ID assignment, maxSize/TTL eviction, and replay-since lookups
// for SSE reconnection.
package buffer
