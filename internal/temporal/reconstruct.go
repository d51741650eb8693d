package temporal

import (
	"sort"
	"time"
)

// defaultConfidenceHorizon is the gap length at which reconstruction
// confidence reaches its floor when the stream has no retention window.
const defaultConfidenceHorizon = 24 * time.Hour

// minReconstructionConfidence floors the confidence of synthesized points.
const minReconstructionConfidence = 0.3

// medianWindow is how many observed points each side of a gap contribute
// to the synthesized value.
const medianWindow = 5

// Gap is a stretch of a stream with no stored points, bounded by the
// observed points on either side.
type Gap struct {
	// Start and End are the timestamps of the observed points bounding
	// the gap. Synthesized points fall strictly between them.
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Duration returns the gap length in milliseconds.
func (g Gap) Duration() int64 {
	return g.End - g.Start
}

// FindGaps scans [start, end] for stretches between consecutive observed
// points wider than twice the stream's resolution. Only interior gaps are
// reported; the stream's history before its first observed point and after
// its last are not gaps, they are simply absent.
func (s *Stream) FindGaps(start, end int64) []Gap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findGapsLocked(start, end)
}

func (s *Stream) findGapsLocked(start, end int64) []Gap {
	threshold := 2 * s.cfg.Resolution

	var gaps []Gap
	prev := int64(0)
	havePrev := false
	for _, key := range s.keys {
		p := s.buckets[key]
		if p.Origin != OriginObserved {
			continue
		}
		if p.Timestamp > end && havePrev {
			// One observed point past the window still closes a gap
			// that started inside it.
			if p.Timestamp-prev > threshold && prev < end {
				gaps = append(gaps, Gap{Start: prev, End: p.Timestamp})
			}
			break
		}
		if havePrev && p.Timestamp-prev > threshold && p.Timestamp > start {
			gaps = append(gaps, Gap{Start: prev, End: p.Timestamp})
		}
		prev = p.Timestamp
		havePrev = true
	}
	return gaps
}

// Reconstruct synthesizes points for every gap found in [start, end]. The
// synthesized points are returned, not stored; use CommitReconstruction on
// the index to persist them.
//
// Each synthesized point carries the per-field median of up to five
// observed points on each side of its gap, tagged RECONSTRUCTED with a
// confidence that decays linearly with gap length down to a floor of 0.3.
// Longer gaps therefore yield strictly less confident points than shorter
// ones.
func (s *Stream) Reconstruct(start, end int64) []DataPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []DataPoint
	for _, gap := range s.findGapsLocked(start, end) {
		out = append(out, s.fillGapLocked(gap, start, end)...)
	}
	return out
}

// fillGapLocked synthesizes points for one gap, clipped to [start, end].
// Caller holds a lock.
func (s *Stream) fillGapLocked(gap Gap, start, end int64) []DataPoint {
	confidence := s.gapConfidence(gap)
	window := s.gapWindowLocked(gap)

	var out []DataPoint
	for ts := gap.Start + s.cfg.Resolution; ts < gap.End; ts += s.cfg.Resolution {
		if ts < start || ts > end {
			continue
		}
		if _, taken := s.buckets[s.bucketFor(ts)]; taken {
			continue
		}
		out = append(out, DataPoint{
			Timestamp:  ts,
			Payload:    medianPayload(window),
			Origin:     OriginReconstructed,
			Confidence: confidence,
		})
	}
	return out
}

// gapConfidence maps a gap's length to a confidence score. The score is
// 1.0 at zero length and decays linearly to the floor at the stream's
// retention window (or a day, when retention is unbounded).
func (s *Stream) gapConfidence(gap Gap) float64 {
	horizon := s.cfg.Retention
	if horizon <= 0 {
		horizon = defaultConfidenceHorizon
	}
	c := 1 - float64(gap.Duration())/float64(horizon.Milliseconds())
	if c < minReconstructionConfidence {
		return minReconstructionConfidence
	}
	return c
}

// gapWindowLocked collects the observed points feeding a gap's synthesized
// values: up to medianWindow points ending at the gap's start, and up to
// medianWindow starting at its end. Caller holds a lock.
func (s *Stream) gapWindowLocked(gap Gap) []DataPoint {
	prev, _ := s.observedNeighbors(gap.Start)
	_, next := s.observedNeighbors(gap.End - 1)

	var window []DataPoint
	if prev != -1 {
		window = append(window, s.observedWindowLocked(prev, medianWindow, false)...)
	}
	if next != -1 {
		window = append(window, s.observedWindowLocked(next, medianWindow, true)...)
	}
	return window
}

// medianPayload builds a payload whose numeric fields are the median of
// the window's values. Non-numeric fields take the most recent value seen.
func medianPayload(window []DataPoint) map[string]any {
	payload := make(map[string]any)
	numeric := make(map[string][]float64)

	for _, p := range window {
		for field, raw := range p.Payload {
			if v, ok := numericField(p, field); ok {
				numeric[field] = append(numeric[field], v)
				continue
			}
			payload[field] = raw
		}
	}
	for field, values := range numeric {
		payload[field] = median(values)
	}
	return payload
}

// median returns the middle value of the set, or the mean of the middle
// pair for even counts.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// FillGaps returns the stored points in [start, end] merged with
// synthesized points for every gap, ordered by time. The stream itself is
// not modified; the synthesized points exist only in the returned slice.
func (s *Stream) FillGaps(start, end int64) []DataPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.rangeLocked(start, end)

	var synthesized []DataPoint
	for _, gap := range s.findGapsLocked(start, end) {
		synthesized = append(synthesized, s.fillGapLocked(gap, start, end)...)
	}
	if len(synthesized) == 0 {
		return stored
	}

	merged := append(stored, synthesized...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}
