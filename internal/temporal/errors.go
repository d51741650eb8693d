package temporal

import "errors"

// Domain errors for the temporal package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, temporal.ErrUnknownStream) {
//	    // reject the caller's request
//	}
var (
	// ErrDuplicateStream is returned when registering a stream ID that
	// already exists.
	ErrDuplicateStream = errors.New("temporal: stream already registered")

	// ErrUnknownStream is returned when an operation names a stream that
	// was never registered (or has been unregistered).
	ErrUnknownStream = errors.New("temporal: unknown stream")

	// ErrNoData is returned when a query cannot be answered because the
	// stream holds no applicable points.
	ErrNoData = errors.New("temporal: no data")

	// ErrInvalidConfig is returned when a stream configuration fails
	// validation.
	ErrInvalidConfig = errors.New("temporal: invalid stream config")

	// ErrInvalidRange is returned when a range query has end before start.
	ErrInvalidRange = errors.New("temporal: invalid range")
)
