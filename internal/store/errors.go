package store

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyClaimed means another worker holds a fresh claim on the
	// event. Expected contention, not a fault.
	ErrAlreadyClaimed = errors.New("event already claimed")

	// ErrAlreadyDelivered means the event's delivered flag is already
	// set; the claim is rejected before it starts. This check runs
	// against the durable flag, which is what makes at-most-once hold
	// across process restarts.
	ErrAlreadyDelivered = errors.New("event already delivered")
)
