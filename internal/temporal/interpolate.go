package temporal

import "fmt"

// PointAt answers a point query at the given timestamp.
//
// An exact bucket hit returns the stored point unmodified regardless of the
// stream's interpolation method. Otherwise the configured method applies:
//
//   - NEAREST: the closest stored point by absolute time distance; ties
//     break toward the earlier point.
//   - LINEAR: per-numeric-field interpolation between the nearest observed
//     points bracketing the query; non-numeric fields take the nearer
//     point's value.
//   - CUBIC: monotonic cubic interpolation over up to four bracketing
//     observed points; falls back to LINEAR with fewer than four.
//   - STEP: the last observed point at or before the query time.
//
// Synthesized results (LINEAR/CUBIC between brackets) are tagged
// RECONSTRUCTED with the brackets' minimum confidence; they are never
// stored.
//
// Returns ErrNoData when the stream holds no point that can answer the
// query.
func (s *Stream) PointAt(ts int64) (DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.keys) == 0 {
		return DataPoint{}, fmt.Errorf("%w: stream %q is empty", ErrNoData, s.cfg.ID)
	}

	// Exact bucket hit.
	if p, ok := s.buckets[s.bucketFor(ts)]; ok && p.Timestamp == ts {
		return p.DeepCopy(), nil
	}

	switch s.cfg.Interpolation {
	case InterpolationNearest:
		return s.nearestLocked(ts)
	case InterpolationStep:
		return s.stepLocked(ts)
	case InterpolationCubic:
		return s.cubicLocked(ts)
	default:
		return s.linearLocked(ts)
	}
}

// nearestLocked returns the closest stored point; ties break earlier.
func (s *Stream) nearestLocked(ts int64) (DataPoint, error) {
	best := -1
	var bestDist int64
	for i, key := range s.keys {
		dist := s.buckets[key].Timestamp - ts
		if dist < 0 {
			dist = -dist
		}
		// Strict less-than keeps the earlier point on ties.
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return s.buckets[s.keys[best]].DeepCopy(), nil
}

// stepLocked returns the last observed point at or before ts.
func (s *Stream) stepLocked(ts int64) (DataPoint, error) {
	prev, _ := s.observedNeighbors(ts)
	if prev == -1 {
		return DataPoint{}, fmt.Errorf("%w: stream %q has no observed point at or before %d", ErrNoData, s.cfg.ID, ts)
	}
	return s.buckets[s.keys[prev]].DeepCopy(), nil
}

// linearLocked interpolates between the observed brackets of ts.
// With only one side available, the existing point is returned as-is.
func (s *Stream) linearLocked(ts int64) (DataPoint, error) {
	prev, next := s.observedNeighbors(ts)
	switch {
	case prev == -1 && next == -1:
		return DataPoint{}, fmt.Errorf("%w: stream %q has no observed points", ErrNoData, s.cfg.ID)
	case prev == -1:
		return s.buckets[s.keys[next]].DeepCopy(), nil
	case next == -1:
		return s.buckets[s.keys[prev]].DeepCopy(), nil
	}

	a := s.buckets[s.keys[prev]]
	b := s.buckets[s.keys[next]]
	frac := float64(ts-a.Timestamp) / float64(b.Timestamp-a.Timestamp)

	return blendPoints(ts, a, b, func(va, vb float64) float64 {
		return va + (vb-va)*frac
	}), nil
}

// cubicLocked interpolates with a monotonic cubic over up to four
// bracketing observed points (two each side). Fewer than four falls back
// to linear interpolation.
func (s *Stream) cubicLocked(ts int64) (DataPoint, error) {
	prev, next := s.observedNeighbors(ts)
	if prev == -1 || next == -1 {
		return s.linearLocked(ts)
	}

	window := s.observedWindowLocked(prev, 2, false)
	window = append(window, s.observedWindowLocked(next, 2, true)...)
	if len(window) < 4 {
		return s.linearLocked(ts)
	}

	// The bracketing interval sits between window[1] and window[2].
	p0, p1, p2, p3 := window[0], window[1], window[2], window[3]

	// blendPoints fills non-numeric fields and confidence; the numeric
	// fields are recomputed per field by the cubic evaluator below.
	return blendPoints(ts, p1, p2, func(_, _ float64) float64 {
		return 0
	}).withNumericBlend(ts, p1, p2, func(field string) (float64, bool) {
		v0, ok0 := numericField(p0, field)
		v1, ok1 := numericField(p1, field)
		v2, ok2 := numericField(p2, field)
		v3, ok3 := numericField(p3, field)
		if !ok1 || !ok2 {
			return 0, false
		}
		if !ok0 {
			v0 = v1
		}
		if !ok3 {
			v3 = v2
		}
		t := float64(ts-p1.Timestamp) / float64(p2.Timestamp-p1.Timestamp)
		return monotoneCubic(v0, v1, v2, v3,
			float64(p0.Timestamp), float64(p1.Timestamp), float64(p2.Timestamp), float64(p3.Timestamp),
			t), true
	}), nil
}

// observedWindowLocked collects up to n observed points walking outward
// from index start (inclusive). Forward walks toward newer points and
// returns them in time order.
func (s *Stream) observedWindowLocked(start, n int, forward bool) []DataPoint {
	var out []DataPoint
	if forward {
		for i := start; i < len(s.keys) && len(out) < n; i++ {
			if p := s.buckets[s.keys[i]]; p.Origin == OriginObserved {
				out = append(out, p)
			}
		}
		return out
	}
	for i := start; i >= 0 && len(out) < n; i-- {
		if p := s.buckets[s.keys[i]]; p.Origin == OriginObserved {
			out = append(out, p)
		}
	}
	// Walked backwards; restore time order.
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// blendPoints builds a synthesized point at ts from brackets a and b.
// Numeric fields present in both are combined with blend; all other fields
// take the nearer point's value. The result is tagged RECONSTRUCTED with
// the brackets' minimum confidence.
func blendPoints(ts int64, a, b DataPoint, blend func(va, vb float64) float64) DataPoint {
	nearer := a
	if b.Timestamp-ts < ts-a.Timestamp {
		nearer = b
	}

	payload := make(map[string]any, len(a.Payload))
	for field, raw := range nearer.Payload {
		payload[field] = raw
	}
	for field := range a.Payload {
		va, okA := numericField(a, field)
		vb, okB := numericField(b, field)
		if okA && okB {
			payload[field] = blend(va, vb)
		}
	}

	confidence := a.Confidence
	if b.Confidence < confidence {
		confidence = b.Confidence
	}

	return DataPoint{
		Timestamp:  ts,
		Payload:    payload,
		Origin:     OriginReconstructed,
		Confidence: confidence,
	}
}

// withNumericBlend replaces the numeric fields of a blended point using a
// per-field evaluator. Fields the evaluator declines keep their existing
// blend.
func (p DataPoint) withNumericBlend(ts int64, a, b DataPoint, eval func(field string) (float64, bool)) DataPoint {
	for field := range a.Payload {
		if _, okA := numericField(a, field); !okA {
			continue
		}
		if _, okB := numericField(b, field); !okB {
			continue
		}
		if v, ok := eval(field); ok {
			p.Payload[field] = v
		}
	}
	p.Timestamp = ts
	return p
}

// numericField extracts a float64 payload field.
func numericField(p DataPoint, field string) (float64, bool) {
	switch v := p.Payload[field].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// monotoneCubic evaluates a Fritsch-Carlson style monotone cubic Hermite
// on the interval [x1, x2] at parameter t (0..1), using the outer points
// to estimate endpoint slopes. The result never overshoots the bracketing
// values.
func monotoneCubic(y0, y1, y2, y3, x0, x1, x2, x3, t float64) float64 {
	h := x2 - x1
	delta := (y2 - y1) / h

	m1 := secantSlope(y0, y1, y2, x0, x1, x2)
	m2 := secantSlope(y1, y2, y3, x1, x2, x3)

	// Clamp slopes to preserve monotonicity over the interval.
	m1 = limitSlope(m1, delta)
	m2 = limitSlope(m2, delta)

	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	return h00*y1 + h10*h*m1 + h01*y2 + h11*h*m2
}

// secantSlope averages the secants on both sides of a point, weighted by
// interval width.
func secantSlope(ya, yb, yc, xa, xb, xc float64) float64 {
	left := (yb - ya) / (xb - xa)
	right := (yc - yb) / (xc - xb)
	// Opposite signs or a flat side mean a local extremum; use zero slope.
	if left*right <= 0 {
		return 0
	}
	wl := xc - xb
	wr := xb - xa
	return (wl*left + wr*right) / (wl + wr)
}

// limitSlope bounds a tangent slope to three times the interval secant,
// the Fritsch-Carlson condition for monotonicity.
func limitSlope(m, delta float64) float64 {
	if delta == 0 {
		return 0
	}
	if m/delta < 0 {
		return 0
	}
	if m/delta > 3 {
		return 3 * delta
	}
	return m
}
