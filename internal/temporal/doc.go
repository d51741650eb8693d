// Package temporal maintains per-stream, time-indexed data and answers
// point and range queries against it, synthesizing plausible values where
// real samples are missing.
//
// # Model
//
// A DataStream is an ordered store of DataPoints keyed by quantized time
// buckets (timestamp rounded down to the stream's resolution). Buckets are
// unique per stream: observed points overwrite observed points
// (last-write-wins), but a reconstructed point never overwrites an observed
// one. Retention is bounded both by a maximum point count and by a
// retention window relative to the newest point; eviction runs
// opportunistically on insert, oldest buckets first.
//
// # Queries
//
// PointAt applies the stream's interpolation method when no exact bucket
// matches: NEAREST (ties break toward the earlier point), LINEAR (per
// numeric payload field between the nearest observed brackets), CUBIC
// (monotonic cubic over up to four bracketing observed points, falling back
// to LINEAR with fewer), and STEP (value holds at the last observed point
// at or before the query time). An exact bucket hit returns the stored
// point unmodified regardless of method.
//
// RangeQuery returns an ordered slice. FillGaps detects sub-intervals with
// no bucket within twice the resolution and synthesizes points from the
// median of a short window of observed neighbours, tagged RECONSTRUCTED
// with a confidence that decays with gap length (floored at 0.3).
// Reconstructed points are computed on read and discarded unless the
// caller explicitly commits them, keeping the index authoritative.
//
// # Concurrency
//
// Each stream carries a reader-writer lock; writers (insert, eviction,
// commit) and readers (point and range queries) are safely concurrent.
// Returned points are copies, so callers can modify them freely.
package temporal
