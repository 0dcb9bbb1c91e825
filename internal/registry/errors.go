package registry

import "errors"

// Operation outcomes callers are expected to branch on. The HTTP layer
// maps each of these to a status code with errors.Is.
var (
	ErrUnauthorized          = errors.New("caller is not the registry owner")
	ErrRegistryPaused        = errors.New("registry is paused")
	ErrRegistryNotPaused     = errors.New("registry is not paused")
	ErrEventNotFound         = errors.New("event not found")
	ErrEventExists           = errors.New("event id already in use")
	ErrInvalidTimeRange      = errors.New("start time must be before end time")
	ErrEventNotStarted       = errors.New("event has not started")
	ErrEventEnded            = errors.New("event has ended")
	ErrEventAtCapacity       = errors.New("event is at capacity")
	ErrNotAllowlisted        = errors.New("attendee is not on the allowlist")
	ErrAlreadyCheckedIn      = errors.New("attendee has already checked in")
	ErrNotCheckedIn          = errors.New("attendee has not checked in")
	ErrEventStarted          = errors.New("cannot reschedule an event that already started")
	ErrCapacityBelowCheckins = errors.New("capacity cannot drop below recorded check-ins")
	ErrEventPaused           = errors.New("event is paused")
	ErrEventNotPaused        = errors.New("event is not paused")
	ErrHasCheckins           = errors.New("event has recorded check-ins")
	ErrZeroAddress           = errors.New("zero address is not allowed")
)
