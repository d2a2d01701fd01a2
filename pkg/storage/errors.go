package storage

import "errors"

// Sentinel errors for archiver operations.
var (
	// ErrNotFound reports that a session has no archived events. The
	// memory and postgres archivers do not return it: Events yields an
	// empty result and a nil error for an unknown session.
	ErrNotFound = errors.New("no archived events for session")

	// ErrConflict reports a duplicate append (the same buffered-event ID
	// mirrored twice). The memory and postgres archivers do not return it:
	// they skip a duplicate ID without error.
	ErrConflict = errors.New("event already archived")
)
