package timesource

import "errors"

// Domain errors for the timesource package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, timesource.ErrSourceUnavailable) {
//	    // exclude the sample from fusion
//	}
var (
	// ErrSourceUnavailable is returned when a provider cannot be reached
	// or does not respond within the per-fetch timeout.
	ErrSourceUnavailable = errors.New("timesource: source unavailable")

	// ErrMalformedSample is returned when a provider responds with data
	// that cannot be normalised into a TimeSample.
	ErrMalformedSample = errors.New("timesource: malformed sample")
)
