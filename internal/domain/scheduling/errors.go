package scheduling

import "errors"

var (
	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("appointment not found")
	// ErrInvalidTransition means the appointment exists but its current
	// status does not allow the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")
)
