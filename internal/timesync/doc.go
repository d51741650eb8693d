// Package timesync derives a single trusted current time from multiple
// independent, unreliable timing sources.
//
// The package has two halves:
//
//   - Fuse combines the TimeSamples of one fetch cycle into a FusedTime
//     using accuracy-weighted averaging with geometry-quality de-rating.
//     More, better-quality sources monotonically increase confidence; a
//     single source still yields a usable lower-confidence estimate, and an
//     empty cycle falls back to the local clock with a zero quality score.
//
//   - Scheduler runs the periodic fetch+fuse loop. Adapter fetches fan out
//     concurrently with a bounded worker count and per-source timeouts; the
//     fused result is published by an atomic pointer swap so readers never
//     observe a partially updated value. Between cycles Current() projects
//     the last published value forward by the local-clock delta since
//     publication, so reads never block on network I/O.
//
// Published timestamps are non-decreasing: a new estimate may move backwards
// only within its own accuracy bound; larger regressions are clamped to the
// previous value. The exception is a fallback reset after all sources are
// lost, which reinitialises from the local clock.
package timesync
