package engine

import "errors"

// Domain errors for the engine facade.
//
// Stream-level errors (unknown stream, no data, invalid range) pass
// through from the temporal package unchanged; check those with
// errors.Is against temporal's sentinels.
var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("engine: not started")

	// ErrInvalidPoint is returned when an ingested point has no timestamp
	// or an empty payload.
	ErrInvalidPoint = errors.New("engine: invalid data point")
)
