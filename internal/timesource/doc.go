// Package timesource provides pluggable adapters for external timing providers.
//
// Each adapter fetches a single raw time reading from one provider and
// normalises it into a TimeSample with a declared quality estimate. Samples
// use canonical units throughout the engine: integer milliseconds since the
// Unix epoch for timestamps, fractional seconds for accuracy. Any unit
// conversion happens here, at the adapter boundary.
//
// Adapters are stateless between calls and never block beyond their
// configured per-fetch timeout. A timeout or network failure surfaces as
// ErrSourceUnavailable; an unparseable response as ErrMalformedSample. The
// fusion cycle treats both identically by excluding the sample.
//
// Usage:
//
//	adapter := timesource.NewHTTPAdapter(cfg)
//	sample, err := adapter.Fetch(ctx)
//	if err != nil {
//	    // sample excluded from this fusion cycle
//	}
package timesource
