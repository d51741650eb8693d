package temporal

import (
	"sort"
	"sync"
)

// Stream is the per-stream temporal index: an ordered store of DataPoints
// keyed by quantized time buckets.
//
// All public methods are thread-safe. Returned points are deep copies.
type Stream struct {
	cfg StreamConfig

	mu        sync.RWMutex
	buckets   map[int64]DataPoint
	keys      []int64 // sorted bucket keys
	evictions int64
}

// newStream creates an empty stream for the given configuration.
// The configuration must already be validated.
func newStream(cfg StreamConfig) *Stream {
	return &Stream{
		cfg:     cfg,
		buckets: make(map[int64]DataPoint),
	}
}

// Config returns the stream's configuration.
func (s *Stream) Config() StreamConfig {
	return s.cfg
}

// bucketFor quantizes a timestamp down to the stream's resolution.
func (s *Stream) bucketFor(ts int64) int64 {
	b := ts / s.cfg.Resolution * s.cfg.Resolution
	if ts < 0 && ts%s.cfg.Resolution != 0 {
		b -= s.cfg.Resolution
	}
	return b
}

// Insert adds a point to the stream. The point's timestamp is quantized to
// a bucket; observed points replace whatever the bucket held, while a
// reconstructed point never overwrites an observed one (it is silently
// dropped). Eviction runs after the insert.
//
// Returns true if the point was stored.
func (s *Stream) Insert(p DataPoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.insertLocked(p)
	if stored {
		s.evictLocked()
	}
	return stored
}

// InsertBatch adds multiple points, running eviction once at the end.
// Returns the number of points stored.
func (s *Stream) InsertBatch(points []DataPoint) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	for _, p := range points {
		if s.insertLocked(p) {
			stored++
		}
	}
	if stored > 0 {
		s.evictLocked()
	}
	return stored
}

// insertLocked stores one point. Caller holds the write lock.
func (s *Stream) insertLocked(p DataPoint) bool {
	bucket := s.bucketFor(p.Timestamp)

	existing, exists := s.buckets[bucket]
	if exists && existing.Origin == OriginObserved && p.Origin == OriginReconstructed {
		return false
	}

	s.buckets[bucket] = p.DeepCopy()
	if !exists {
		idx := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= bucket })
		s.keys = append(s.keys, 0)
		copy(s.keys[idx+1:], s.keys[idx:])
		s.keys[idx] = bucket
	}
	return true
}

// evictLocked removes the oldest buckets until the stream complies with
// MaxPoints and Retention. Caller holds the write lock.
func (s *Stream) evictLocked() {
	if len(s.keys) == 0 {
		return
	}

	cutoff := int64(-1 << 62)
	if s.cfg.Retention > 0 {
		newest := s.keys[len(s.keys)-1]
		cutoff = newest - s.cfg.Retention.Milliseconds()
	}

	drop := 0
	for drop < len(s.keys) {
		overCount := s.cfg.MaxPoints > 0 && len(s.keys)-drop > s.cfg.MaxPoints
		tooOld := s.keys[drop] < cutoff
		if !overCount && !tooOld {
			break
		}
		delete(s.buckets, s.keys[drop])
		drop++
	}
	if drop > 0 {
		s.keys = s.keys[drop:]
		s.evictions += int64(drop)
	}
}

// Range returns the stored points with timestamps in [start, end],
// ordered by time. The result is finite and independent of the index.
func (s *Stream) Range(start, end int64) []DataPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rangeLocked(start, end)
}

// rangeLocked collects points in [start, end]. Caller holds a lock.
func (s *Stream) rangeLocked(start, end int64) []DataPoint {
	lo := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= s.bucketFor(start) })

	var out []DataPoint
	for i := lo; i < len(s.keys); i++ {
		p := s.buckets[s.keys[i]]
		if p.Timestamp > end {
			break
		}
		if p.Timestamp >= start {
			out = append(out, p.DeepCopy())
		}
	}
	return out
}

// Stats returns a snapshot of the stream's size and bounds.
func (s *Stream) Stats() StreamStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StreamStats{
		Points:    len(s.keys),
		Evictions: s.evictions,
	}
	if len(s.keys) > 0 {
		stats.OldestTS = s.buckets[s.keys[0]].Timestamp
		stats.NewestTS = s.buckets[s.keys[len(s.keys)-1]].Timestamp
	}
	return stats
}

// observedNeighbors returns the indices into keys of observed points at or
// before ts (prev) and strictly after ts (next). Either may be -1 when no
// such point exists. Caller holds a lock.
func (s *Stream) observedNeighbors(ts int64) (prev, next int) {
	prev, next = -1, -1

	// First key strictly greater than ts.
	hi := sort.Search(len(s.keys), func(i int) bool {
		return s.buckets[s.keys[i]].Timestamp > ts
	})

	for i := hi - 1; i >= 0; i-- {
		if s.buckets[s.keys[i]].Origin == OriginObserved {
			prev = i
			break
		}
	}
	for i := hi; i < len(s.keys); i++ {
		if s.buckets[s.keys[i]].Origin == OriginObserved {
			next = i
			break
		}
	}
	return prev, next
}
