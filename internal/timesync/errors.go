package timesync

import "errors"

// Domain errors for the timesync package.
var (
	// ErrAlreadyStarted is returned when Start is called on a running scheduler.
	ErrAlreadyStarted = errors.New("timesync: scheduler already started")

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("timesync: scheduler not started")
)
