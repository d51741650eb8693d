package timesource

import (
	"context"
	"time"
)

// TimeSample is one raw reading from a timing provider, normalised to the
// engine's canonical units. A sample is immutable once created.
type TimeSample struct {
	// SourceID identifies the adapter that produced the sample.
	SourceID string

	// RawTimestamp is the provider's reported time in milliseconds since
	// the Unix epoch.
	RawTimestamp int64

	// DeclaredAccuracy is the provider's accuracy estimate in seconds.
	// Smaller is better.
	DeclaredAccuracy float64

	// GeometryQuality (0..1) describes how favourably distributed the
	// provider's contributing signals are. 1 is ideal.
	GeometryQuality float64

	// FetchLatency is the round-trip time of the fetch in milliseconds.
	FetchLatency int64

	// FetchedAt is the local clock reading when the sample was obtained.
	// It carries Go's monotonic clock component and is used for
	// staleness filtering.
	FetchedAt time.Time
}

// Adapter fetches time readings from one external provider.
//
// Implementations must be stateless between calls and safe for concurrent
// use. Fetch must respect the context deadline and must not block beyond
// the adapter's configured timeout.
type Adapter interface {
	// Name returns the source identifier used in samples and logs.
	Name() string

	// Fetch obtains one TimeSample from the provider.
	//
	// Returns ErrSourceUnavailable on network failure or timeout, and
	// ErrMalformedSample when the response cannot be normalised.
	Fetch(ctx context.Context) (TimeSample, error)
}
