package timesync

import (
	"time"

	"github.com/chronofuse/chronofuse-core/internal/timesource"
)

// LocalSourceID is the contributing source recorded when fusion falls back
// to the local clock because no valid samples were available.
const LocalSourceID = "local"

// localClockAccuracy is the accuracy (seconds) attributed to the local
// clock fallback. The local clock is read directly, so the only error is
// scheduling jitter around the read itself.
const localClockAccuracy = 0.005

// FusedTime is the engine's single best estimate of current authoritative
// time. It is recomputed each sync cycle; the previous value remains valid
// as last-known-good until replaced.
type FusedTime struct {
	// Timestamp is the fused time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// EstimatedAccuracy is the expected error bound in seconds.
	EstimatedAccuracy float64 `json:"estimated_accuracy"`

	// QualityScore (0..1) expresses overall confidence in the estimate.
	// Zero means the local-clock fallback is in effect.
	QualityScore float64 `json:"quality_score"`

	// ContributingSourceID names the best single source for attribution,
	// or "local" for the fallback.
	ContributingSourceID string `json:"contributing_source_id"`

	// SampleCount is the number of samples that contributed.
	SampleCount int `json:"sample_count"`

	// PublishedAt is the local clock reading when the value was computed.
	// It carries the monotonic clock component used for drift compensation.
	PublishedAt time.Time `json:"published_at"`
}

// FusionOptions tunes one fusion pass.
type FusionOptions struct {
	// StaleAfter discards samples whose FetchedAt is older than this
	// relative to now. Zero disables the staleness filter.
	StaleAfter time.Duration

	// MinSourcesFullConfidence is the sample count at which the quality
	// score stops being de-rated for having few sources. Values below 1
	// are treated as 1.
	MinSourcesFullConfidence int
}

// Fuse combines the TimeSamples of one cycle into a FusedTime.
//
// The algorithm:
//  1. Discard samples older than the staleness threshold.
//  2. With no valid samples, fall back to the local clock with quality 0.
//  3. Weight each sample by 1 / (declaredAccuracy * (2 - geometryQuality)).
//  4. The fused timestamp is the weighted average of raw timestamps.
//  5. Estimated accuracy is the best (smallest) declared accuracy.
//  6. Quality is the mean geometry quality scaled by sampleCount /
//     minSourcesForFullConfidence, capped at 1.
//  7. The contributing source is the sample with the smallest declared
//     accuracy; ties prefer the lower fetch latency.
//
// Parameters:
//   - samples: Successfully fetched samples for this cycle
//   - now: Local clock reading used for staleness and publication
//   - opts: Fusion tuning
//
// Returns:
//   - FusedTime: Always valid; never an error, even for an empty cycle
func Fuse(samples []timesource.TimeSample, now time.Time, opts FusionOptions) FusedTime {
	minSources := opts.MinSourcesFullConfidence
	if minSources < 1 {
		minSources = 1
	}

	valid := samples[:0:0]
	for _, s := range samples {
		if opts.StaleAfter > 0 && now.Sub(s.FetchedAt) > opts.StaleAfter {
			continue
		}
		valid = append(valid, s)
	}

	if len(valid) == 0 {
		return localFallback(now)
	}

	// Weighted average of raw timestamps. Offsets from the first sample
	// keep the arithmetic well inside float64 precision.
	base := valid[0].RawTimestamp
	var weightSum, offsetSum float64
	var geometrySum float64
	best := valid[0]
	for _, s := range valid {
		weight := 1 / (s.DeclaredAccuracy * (2 - s.GeometryQuality))
		weightSum += weight
		offsetSum += weight * float64(s.RawTimestamp-base)
		geometrySum += s.GeometryQuality

		if s.DeclaredAccuracy < best.DeclaredAccuracy ||
			(s.DeclaredAccuracy == best.DeclaredAccuracy && s.FetchLatency < best.FetchLatency) {
			best = s
		}
	}

	quality := (geometrySum / float64(len(valid))) * (float64(len(valid)) / float64(minSources))
	if quality > 1 {
		quality = 1
	}

	return FusedTime{
		Timestamp:            base + int64(offsetSum/weightSum),
		EstimatedAccuracy:    best.DeclaredAccuracy,
		QualityScore:         quality,
		ContributingSourceID: best.SourceID,
		SampleCount:          len(valid),
		PublishedAt:          now,
	}
}

// localFallback builds the degraded local-clock FusedTime used when no
// sources contributed.
func localFallback(now time.Time) FusedTime {
	return FusedTime{
		Timestamp:            now.UnixMilli(),
		EstimatedAccuracy:    localClockAccuracy,
		QualityScore:         0,
		ContributingSourceID: LocalSourceID,
		SampleCount:          0,
		PublishedAt:          now,
	}
}

// ProjectTo returns the fused timestamp advanced by the local-clock delta
// between publication and now (drift compensation). The quality metadata is
// unchanged; only the timestamp moves.
func (ft FusedTime) ProjectTo(now time.Time) FusedTime {
	elapsed := now.Sub(ft.PublishedAt)
	if elapsed > 0 {
		ft.Timestamp += elapsed.Milliseconds()
	}
	return ft
}
